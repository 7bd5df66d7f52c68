// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"encoding/binary"
	"fmt"

	"github.com/miekg/dns"
)

// Record is a resource record.
//
// Type is read from the wire before Data, since the type code is what
// tells how to interpret the RDATA bytes.
type Record struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32

	// Data is nil until the record has been resolved.
	Data RData
}

// RecordFromQuestion returns an unresolved record with the name, type and
// class of the given question and a zero TTL.
func RecordFromQuestion(q Question) Record {
	return Record{Name: q.Name, Type: q.Type, Class: q.Class, TTL: 0}
}

// Resolve fills the RDATA of an A record with [StubAddress].
func (rr *Record) Resolve() error {
	if rr.Type != dns.TypeA {
		return fmt.Errorf("%w: cannot resolve %s", ErrUnsupportedType, dns.Type(rr.Type))
	}
	rr.Data = StubAddress
	return nil
}

// Encode returns the wire representation of the record.
func (rr Record) Encode() ([]byte, error) {
	if rr.Data == nil || rr.Data.Type() != rr.Type {
		return nil, fmt.Errorf("%w: %s record for %q", ErrMissingRData, dns.Type(rr.Type), rr.Name)
	}
	rdlength, err := rr.Data.Len()
	if err != nil {
		return nil, err
	}
	rdata, err := rr.Data.Pack()
	if err != nil {
		return nil, err
	}
	out, err := EncodeName(rr.Name)
	if err != nil {
		return nil, err
	}
	out = binary.BigEndian.AppendUint16(out, rr.Type)
	out = binary.BigEndian.AppendUint16(out, rr.Class)
	out = binary.BigEndian.AppendUint32(out, rr.TTL)
	out = binary.BigEndian.AppendUint16(out, rdlength)
	out = append(out, rdata...)
	return out, nil
}

// DecodeRecord decodes the record at the beginning of data and returns
// it along with the number of bytes consumed.
func DecodeRecord(data []byte) (Record, int, error) {
	name, off, err := DecodeName(data)
	if err != nil {
		return Record{}, 0, err
	}
	if len(data) < off+8 {
		return Record{}, 0, fmt.Errorf("%w: record for %q is truncated", ErrCannotUnmarshalMessage, name)
	}
	rr := Record{
		Name:  name,
		Type:  binary.BigEndian.Uint16(data[off : off+2]),
		Class: binary.BigEndian.Uint16(data[off+2 : off+4]),
		TTL:   binary.BigEndian.Uint32(data[off+4 : off+8]),
	}
	off += 8
	rdata, n, err := DecodeRData(rr.Type, data[off:])
	if err != nil {
		return Record{}, 0, fmt.Errorf("record for %q: %w", name, err)
	}
	rr.Data = rdata
	return rr, off + n, nil
}
