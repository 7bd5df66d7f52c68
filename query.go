// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// Query is a single-question DNS query.
//
// Construct using [NewQuery] or set the MANDATORY fields.
type Query struct {
	// ID is the OPTIONAL query ID.
	ID uint16

	// Name is the MANDATORY domain name to query.
	Name string

	// NoRecursion OPTIONALLY clears the RD flag.
	NoRecursion bool

	// Type is the query type.
	Type uint16
}

// NewQuery constructs a new [*Query] with safe defaults.
//
// By default, the query uses a randomized ID and requests recursion.
func NewQuery(name string, qtype uint16) *Query {
	return &Query{
		ID:          dns.Id(),
		Name:        name,
		NoRecursion: false,
		Type:        qtype,
	}
}

// Clone returns a deep copy of the query.
func (q *Query) Clone() *Query {
	return &Query{
		ID:          q.ID,
		Name:        q.Name,
		NoRecursion: q.NoRecursion,
		Type:        q.Type,
	}
}

// NewMessage creates a new [*Message] from the [*Query].
func (q *Query) NewMessage() (*Message, error) {
	// IDNA encode the domain name.
	punyName, err := idna.Lookup.ToASCII(strings.TrimSuffix(q.Name, "."))
	if err != nil {
		return nil, err
	}

	header := Header{
		ID:     q.ID,
		Opcode: dns.OpcodeQuery,
		RD:     !q.NoRecursion,
	}
	question := Question{
		Name:  punyName,
		Type:  q.Type,
		Class: dns.ClassINET,
	}
	return NewMessage(header, []Question{question}, nil), nil
}

// Exchange sends the query over conn and returns the first well-formed
// message carrying the same transaction ID. The exchange is bounded by the
// context deadline and interrupted when the context is done.
func Exchange(ctx context.Context, conn net.Conn, query *Message) (*Message, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	raw, err := query.Encode()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(raw); err != nil {
		return nil, err
	}

	buffer := make([]byte, MaxMessageSize)
	for {
		count, err := conn.Read(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		resp, _, err := DecodeMessage(buffer[:count])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
		if resp.Header.ID != query.Header.ID {
			continue
		}
		return resp, nil
	}
}
