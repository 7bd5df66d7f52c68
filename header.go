// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"encoding/binary"
	"fmt"

	"github.com/miekg/dns"
)

// HeaderSize is the size of the fixed message header.
const HeaderSize = 12

// Header is the fixed-size DNS message header.
//
// Opcode and Rcode use four bits on the wire and Z uses three bits:
// higher bits are discarded when encoding.
type Header struct {
	// ID is the transaction ID.
	ID uint16

	// QR is true for responses and false for queries.
	QR bool

	Opcode uint8
	AA     bool
	TC     bool
	RD     bool
	RA     bool
	Z      uint8
	Rcode  uint8

	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Encode returns the 12 bytes wire representation of the header.
func (h Header) Encode() []byte {
	out := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(out[0:2], h.ID)
	out[2] = bit(h.QR)<<7 | (h.Opcode&0x0F)<<3 | bit(h.AA)<<2 | bit(h.TC)<<1 | bit(h.RD)
	out[3] = bit(h.RA)<<7 | (h.Z&0x07)<<4 | h.Rcode&0x0F
	binary.BigEndian.PutUint16(out[4:6], h.QDCount)
	binary.BigEndian.PutUint16(out[6:8], h.ANCount)
	binary.BigEndian.PutUint16(out[8:10], h.NSCount)
	binary.BigEndian.PutUint16(out[10:12], h.ARCount)
	return out
}

// DecodeHeader decodes the header at the beginning of data and
// returns it along with the number of bytes consumed.
func DecodeHeader(data []byte) (Header, int, error) {
	if len(data) < HeaderSize {
		return Header{}, 0, fmt.Errorf("%w: header needs %d bytes, got %d",
			ErrCannotUnmarshalMessage, HeaderSize, len(data))
	}
	h := Header{
		ID:      binary.BigEndian.Uint16(data[0:2]),
		QR:      data[2]&0x80 != 0,
		Opcode:  (data[2] >> 3) & 0x0F,
		AA:      data[2]&0x04 != 0,
		TC:      data[2]&0x02 != 0,
		RD:      data[2]&0x01 != 0,
		RA:      data[3]&0x80 != 0,
		Z:       (data[3] >> 4) & 0x07,
		Rcode:   data[3] & 0x0F,
		QDCount: binary.BigEndian.Uint16(data[4:6]),
		ANCount: binary.BigEndian.Uint16(data[6:8]),
		NSCount: binary.BigEndian.Uint16(data[8:10]),
		ARCount: binary.BigEndian.Uint16(data[10:12]),
	}
	return h, HeaderSize, nil
}

// ResponseHeader returns the header of a response to the given query.
//
// Everything is copied from the query except QR, which is set, and the
// RCODE, which is NOTIMP for any opcode other than a standard query.
func ResponseHeader(query Header) Header {
	query.QR = true
	query.Rcode = rcodeForOpcode(query.Opcode)
	return query
}

func rcodeForOpcode(opcode uint8) uint8 {
	if opcode == dns.OpcodeQuery {
		return dns.RcodeSuccess
	}
	return dns.RcodeNotImplemented
}

func bit(v bool) byte {
	if v {
		return 1
	}
	return 0
}
