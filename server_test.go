// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// startUpstream runs a fake resolver answering every A question with addr.
func startUpstream(t *testing.T, addr A) net.Addr {
	pconn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pconn.Close() })

	go func() {
		buffer := make([]byte, MaxMessageSize)
		for {
			count, source, err := pconn.ReadFrom(buffer)
			if err != nil {
				return
			}
			query, _, err := DecodeMessage(buffer[:count])
			if err != nil || len(query.Questions) != 1 {
				continue
			}
			q0 := query.Questions[0]
			rr := Record{Name: q0.Name, Type: q0.Type, Class: q0.Class, TTL: 60, Data: addr}
			header := query.Header
			header.QR = true
			header.RA = true
			resp := NewMessage(header, query.Questions, []Record{rr})
			_, _ = pconn.WriteTo(runtimex.PanicOnError1(resp.Encode()), source)
		}
	}()
	return pconn.LocalAddr()
}

func startServer(t *testing.T, upstream net.Addr) (*Server, func() error) {
	pconn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pconn.Close() })

	logger := slog.New(slog.DiscardHandler)
	config := NewHandlerConfig(upstream)
	config.Logger = logger
	srv := NewServer(pconn, NewHandler(pconn, config))
	srv.Logger = logger
	srv.SweepInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errch := make(chan error, 1)
	go func() { errch <- srv.Serve(ctx) }()
	require.Eventually(t, srv.running.IsSet, time.Second, 5*time.Millisecond)

	stop := func() error {
		cancel()
		return <-errch
	}
	return srv, stop
}

func TestServerForwardsQueries(t *testing.T) {
	upstream := startUpstream(t, A{93, 184, 216, 34})
	srv, stop := startServer(t, upstream)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialUDP(t, srv.Conn.LocalAddr())

	questions := []Question{NewQuestion("a.example"), NewQuestion("b.example")}
	query := NewMessage(Header{ID: 4321, RD: true}, questions, nil)
	resp, err := Exchange(ctx, conn, query)
	require.NoError(t, err)
	require.True(t, resp.Header.QR)
	require.Equal(t, questions, resp.Questions)
	require.Len(t, resp.Answers, 2)
	for _, rr := range resp.Answers {
		require.Equal(t, A{93, 184, 216, 34}, rr.Data)
	}

	// a malformed datagram does not stop the server
	_, err = conn.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	query = runtimex.PanicOnError1(NewQuery("c.example", dns.TypeA).NewMessage())
	resp, err = Exchange(ctx, conn, query)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)

	require.NoError(t, stop())
	require.Zero(t, srv.Handler.Pending())
}

func TestServerStubMode(t *testing.T) {
	srv, stop := startServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	query := runtimex.PanicOnError1(NewQuery("codecrafters.io", dns.TypeA).NewMessage())

	resp, err := Exchange(ctx, dialUDP(t, srv.Conn.LocalAddr()), query)
	require.NoError(t, err)
	require.Equal(t, []Record{{
		Name:  "codecrafters.io",
		Type:  dns.TypeA,
		Class: dns.ClassINET,
		TTL:   0,
		Data:  StubAddress,
	}}, resp.Answers)

	require.NoError(t, stop())
}

func TestServerAlreadyRunning(t *testing.T) {
	srv, stop := startServer(t, nil)
	require.ErrorIs(t, srv.Serve(context.Background()), ErrServerRunning)
	require.NoError(t, stop())

	// once stopped, it may serve again
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, srv.Serve(ctx))
}

func TestServerReadError(t *testing.T) {
	pconn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(pconn, NewHandler(pconn, NewHandlerConfig(nil)))
	srv.Logger = slog.New(slog.DiscardHandler)
	require.NoError(t, pconn.Close())

	require.Error(t, srv.Serve(context.Background()))
}

func TestServerLiteral(t *testing.T) {
	pconn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pconn.Close()

	config := NewHandlerConfig(nil)
	config.Logger = slog.New(slog.DiscardHandler)
	srv := &Server{Conn: pconn, Handler: NewHandler(pconn, config)}

	ctx, cancel := context.WithCancel(context.Background())
	errch := make(chan error, 1)
	go func() { errch <- srv.Serve(ctx) }()
	require.Eventually(t, srv.running.IsSet, time.Second, 5*time.Millisecond)

	// without a sweep interval the loop still waits for datagrams
	query := runtimex.PanicOnError1(NewQuery("example.com", dns.TypeA).NewMessage())
	exchangeCtx, exchangeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer exchangeCancel()
	resp, err := Exchange(exchangeCtx, dialUDP(t, pconn.LocalAddr()), query)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)

	cancel()
	require.NoError(t, <-errch)
}
