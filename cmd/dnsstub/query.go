// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/cobra"

	"github.com/bassosimone/dnsstub"
)

func newQueryCommand() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "query <name>",
		Short: "Resolve the A records of a name through a forwarder.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd.OutOrStdout(), server, timeout, args[0])
		},
	}
	cmd.Flags().StringVar(&server, "server", "127.0.0.1:2053", "address of the forwarder")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "time to wait for the response")
	return cmd
}

// runQuery sends an A query for name to server and prints the response
// followed by the A records, one per line.
func runQuery(ctx context.Context, w io.Writer, server string, timeout time.Duration, name string) error {
	query, err := dnsstub.NewQuery(name, dns.TypeA).NewMessage()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", server)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := dnsstub.Exchange(ctx, conn, query)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, resp.String())

	parsed, err := dnsstub.ParseResponse(query, resp)
	if err != nil {
		return err
	}
	addrs, err := parsed.RecordsA()
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		fmt.Fprintln(w, addr)
	}
	return nil
}
