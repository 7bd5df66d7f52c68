// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/miekg/dns"
)

// RData is the type-specific payload of a resource record.
//
// The set of implementations is closed: [A] and [CNAME].
type RData interface {
	// Type returns the wire type code.
	Type() uint16

	// Len returns the RDATA length in bytes.
	Len() (uint16, error)

	// Pack returns the RDATA bytes, without the RDLENGTH prefix.
	Pack() ([]byte, error)

	String() string

	isRData()
}

// A is the RDATA of an A record: four raw IPv4 octets.
type A [4]byte

// StubAddress is the address used to answer queries when no upstream is configured.
var StubAddress = A{8, 8, 8, 8}

// Type implements [RData].
func (A) Type() uint16 {
	return dns.TypeA
}

// Len implements [RData].
func (A) Len() (uint16, error) {
	return 4, nil
}

// Pack implements [RData].
func (a A) Pack() ([]byte, error) {
	return a[:], nil
}

// String returns the dotted-quad representation.
func (a A) String() string {
	return netip.AddrFrom4(a).String()
}

func (A) isRData() {}

// CNAME is the RDATA of a CNAME record.
//
// The type is recognized but its codec is not implemented: every
// operation other than [CNAME.Type] returns [ErrNotImplemented].
type CNAME struct {
	Target string
}

// Type implements [RData].
func (CNAME) Type() uint16 {
	return dns.TypeCNAME
}

// Len implements [RData].
func (CNAME) Len() (uint16, error) {
	return 0, fmt.Errorf("%w: CNAME RDATA length", ErrNotImplemented)
}

// Pack implements [RData].
func (CNAME) Pack() ([]byte, error) {
	return nil, fmt.Errorf("%w: CNAME RDATA encoding", ErrNotImplemented)
}

func (c CNAME) String() string {
	return c.Target
}

func (CNAME) isRData() {}

// DecodeRData decodes the RDLENGTH and RDATA fields of a record of the
// given type. The data slice must start at RDLENGTH. It returns the
// decoded RDATA along with the number of bytes consumed, which include
// the two bytes of RDLENGTH.
//
// Types other than A return [ErrNotImplemented] (CNAME) or
// [ErrUnsupportedType] (anything else). An A record whose RDLENGTH
// is not four is rejected as malformed.
func DecodeRData(rrtype uint16, data []byte) (RData, int, error) {
	if len(data) < 2 {
		return nil, 0, fmt.Errorf("%w: missing RDLENGTH", ErrCannotUnmarshalMessage)
	}
	rdlength := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+rdlength {
		return nil, 0, fmt.Errorf("%w: RDATA runs past the end of the buffer", ErrCannotUnmarshalMessage)
	}
	rdata := data[2 : 2+rdlength]

	switch rrtype {
	case dns.TypeA:
		if rdlength != 4 {
			return nil, 0, fmt.Errorf("%w: A record with RDLENGTH %d", ErrCannotUnmarshalMessage, rdlength)
		}
		var a A
		copy(a[:], rdata)
		return a, 2 + rdlength, nil

	case dns.TypeCNAME:
		return nil, 0, fmt.Errorf("%w: CNAME RDATA decoding", ErrNotImplemented)

	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedType, dns.Type(rrtype))
	}
}
