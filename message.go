// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"fmt"
	"math"
	"slices"

	"github.com/miekg/dns"
)

// MaxMessageSize is the maximum size of a message over UDP without EDNS0.
const MaxMessageSize = 512

// Message is a DNS message made of a header, a question section and an
// optional answer section. Authority and additional sections are not
// supported.
//
// Construct using [NewMessage] or [DecodeMessage].
type Message struct {
	Header    Header
	Questions []Question
	Answers   []Record

	// AnswerSection distinguishes a message without answer section
	// from a message with an empty one. Decoded messages always have
	// an answer section.
	AnswerSection bool
}

// NewMessage constructs a new [*Message]. A nil answers slice means that
// the message has no answer section. QDCOUNT and ANCOUNT are recomputed
// from the sections, whatever their value in the given header.
func NewMessage(header Header, questions []Question, answers []Record) *Message {
	m := &Message{
		Header:        header,
		Questions:     questions,
		Answers:       answers,
		AnswerSection: answers != nil,
	}
	m.updateCounts()
	return m
}

func (m *Message) updateCounts() {
	m.Header.QDCount = uint16(min(len(m.Questions), math.MaxUint16))
	m.Header.ANCount = 0
	if m.AnswerSection {
		m.Header.ANCount = uint16(min(len(m.Answers), math.MaxUint16))
	}
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := &Message{
		Header:        m.Header,
		Questions:     slices.Clone(m.Questions),
		AnswerSection: m.AnswerSection,
	}
	if m.AnswerSection {
		// RData values are immutable so a shallow copy of each record suffices.
		c.Answers = append(make([]Record, 0, len(m.Answers)), m.Answers...)
	}
	return c
}

// Encode returns the wire representation of the message. The section
// counts written to the wire always reflect the sections' lengths, hence
// NSCOUNT and ARCOUNT are always zero.
func (m *Message) Encode() ([]byte, error) {
	if len(m.Questions) > math.MaxUint16 || len(m.Answers) > math.MaxUint16 {
		return nil, ErrTooManyRecords
	}
	header := m.Header
	header.QDCount = uint16(len(m.Questions))
	header.ANCount = 0
	if m.AnswerSection {
		header.ANCount = uint16(len(m.Answers))
	}
	header.NSCount = 0
	header.ARCount = 0

	out := header.Encode()
	for _, q := range m.Questions {
		data, err := q.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	if m.AnswerSection {
		for _, rr := range m.Answers {
			data, err := rr.Encode()
			if err != nil {
				return nil, err
			}
			out = append(out, data...)
		}
	}
	return out, nil
}

// DecodeMessage decodes the header, exactly QDCOUNT questions and exactly
// ANCOUNT answers from data. It returns the message along with the number
// of bytes consumed. Authority and additional records, if any, are left
// in the unconsumed remainder.
func DecodeMessage(data []byte) (*Message, int, error) {
	header, off, err := DecodeHeader(data)
	if err != nil {
		return nil, 0, err
	}

	// Each question takes at least five bytes and each answer at least
	// eleven: do not trust the counts when preallocating.
	m := &Message{
		Header:        header,
		Questions:     make([]Question, 0, min(int(header.QDCount), (len(data)-off)/5)),
		Answers:       make([]Record, 0, min(int(header.ANCount), (len(data)-off)/11)),
		AnswerSection: true,
	}
	for i := 0; i < int(header.QDCount); i++ {
		q, n, err := DecodeQuestion(data[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("question #%d: %w", i, err)
		}
		m.Questions = append(m.Questions, q)
		off += n
	}
	for i := 0; i < int(header.ANCount); i++ {
		rr, n, err := DecodeRecord(data[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("answer #%d: %w", i, err)
		}
		m.Answers = append(m.Answers, rr)
		off += n
	}
	return m, off, nil
}

// AddAnswer appends an answer to the answer section.
func (m *Message) AddAnswer(rr Record) error {
	if !m.AnswerSection {
		return ErrNoAnswerSection
	}
	m.Answers = append(m.Answers, rr)
	return nil
}

// AllQuestionsAnswered returns whether the number of answers equals
// QDCOUNT. A message without answer section has all of its questions
// answered only when QDCOUNT is zero.
func (m *Message) AllQuestionsAnswered() bool {
	if !m.AnswerSection {
		return m.Header.QDCount == 0
	}
	return len(m.Answers) == int(m.Header.QDCount)
}

// PrepareForResponse sets QR, recomputes QDCOUNT and ANCOUNT from the
// sections and recomputes RCODE from the opcode like [ResponseHeader].
func (m *Message) PrepareForResponse(qr bool) {
	m.Header.QR = qr
	m.updateCounts()
	m.Header.Rcode = rcodeForOpcode(m.Header.Opcode)
}

// String returns the message in presentation format.
func (m *Message) String() string {
	raw, err := m.Encode()
	if err != nil {
		return fmt.Sprintf(";; cannot encode message %d: %s", m.Header.ID, err)
	}
	msg := new(dns.Msg)
	if err := msg.Unpack(raw); err != nil {
		return fmt.Sprintf(";; cannot format message %d: %s", m.Header.ID, err)
	}
	return msg.String()
}
