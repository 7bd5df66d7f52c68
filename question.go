// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"encoding/binary"
	"fmt"

	"github.com/miekg/dns"
)

// Question is an entry of the question section.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// NewQuestion returns an IN A question for the given name.
func NewQuestion(name string) Question {
	return Question{Name: name, Type: dns.TypeA, Class: dns.ClassINET}
}

// Encode returns the wire representation of the question.
func (q Question) Encode() ([]byte, error) {
	out, err := EncodeName(q.Name)
	if err != nil {
		return nil, err
	}
	out = binary.BigEndian.AppendUint16(out, q.Type)
	out = binary.BigEndian.AppendUint16(out, q.Class)
	return out, nil
}

// DecodeQuestion decodes the question at the beginning of data and
// returns it along with the number of bytes consumed.
func DecodeQuestion(data []byte) (Question, int, error) {
	name, off, err := DecodeName(data)
	if err != nil {
		return Question{}, 0, err
	}
	if len(data) < off+4 {
		return Question{}, 0, fmt.Errorf("%w: question for %q is truncated", ErrCannotUnmarshalMessage, name)
	}
	q := Question{
		Name:  name,
		Type:  binary.BigEndian.Uint16(data[off : off+2]),
		Class: binary.BigEndian.Uint16(data[off+2 : off+4]),
	}
	return q, off + 4, nil
}
