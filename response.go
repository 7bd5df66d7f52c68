//
// SPDX-License-Identifier: BSD-3-Clause
//
// Adapted from: https://github.com/ooni/probe-engine/blob/v0.23.0/netx/resolver/decoder.go
// Adapted from: https://github.com/golang/go/blob/go1.21.10/src/net/dnsclient_unix.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/dns/dnscore/response.go
//

package dnsstub

import (
	"errors"

	"github.com/miekg/dns"
)

// Additional errors emitted by [ValidateResponseForQuery].
var (
	// ErrInvalidQuery means that the query does not contain a single question.
	ErrInvalidQuery = errors.New("invalid query")
)

// ValidateResponseForQuery validates a DNS response for a given query.
// On success it returns the single validated question from the query.
func ValidateResponseForQuery(query, resp *Message) (Question, error) {
	// 1. make sure the message is actually a response
	if !resp.Header.QR {
		return Question{}, ErrInvalidResponse
	}

	// 2. make sure the response ID matches the query ID
	if resp.Header.ID != query.Header.ID {
		return Question{}, ErrInvalidResponse
	}

	// 3. make sure the query and the response contains a question
	if len(query.Questions) != 1 {
		return Question{}, ErrInvalidQuery
	}
	if len(resp.Questions) != 1 {
		return Question{}, ErrInvalidResponse
	}
	resp0 := resp.Questions[0]
	query0 := query.Questions[0]

	// 4. make sure the question name is correct
	if !responseEqualASCIIName(resp0.Name, query0.Name) {
		return Question{}, ErrInvalidResponse
	}
	if resp0.Class != query0.Class {
		return Question{}, ErrInvalidResponse
	}
	if resp0.Type != query0.Type {
		return Question{}, ErrInvalidResponse
	}
	return query0, nil
}

// SPDX-License-Identifier: BSD-3-Clause
//
// Borrowed from Go src/net package.
func responseEqualASCIIName(x, y string) bool {
	if len(x) != len(y) {
		return false
	}
	for i := 0; i < len(x); i++ {
		a := x[i]
		b := y[i]
		if 'A' <= a && a <= 'Z' {
			a += 0x20
		}
		if 'A' <= b && b <= 'Z' {
			b += 0x20
		}
		if a != b {
			return false
		}
	}
	return true
}

// These error messages use the same suffixes used by the Go standard library.
var (
	// ErrInvalidResponse means that the response is not a response message
	// or does not contain a single question matching the query.
	ErrInvalidResponse = errors.New("invalid DNS response")

	// ErrNoName indicates that the server response code is NXDOMAIN.
	ErrNoName = errors.New("no such host")

	// ErrServerMisbehaving indicates that the server response code is
	// neither 0, nor NXDOMAIN, nor SERVFAIL.
	ErrServerMisbehaving = errors.New("server misbehaving")

	// ErrServerTemporarilyMisbehaving indicates that the server answer is SERVFAIL.
	//
	// The error message is same as [ErrServerMisbehaving] for compatibility with the
	// Go standard library, which assigns the same error string to both errors.
	ErrServerTemporarilyMisbehaving = errors.New("server misbehaving")

	// ErrNoData indicates that there is no pertinent answer in the response.
	ErrNoData = errors.New("no answer from DNS server")
)

// ResponseErrorFromRCODE maps an RCODE inside a valid DNS response
// to an error string using a suffix compatible with the error strings
// returned by [*net.Resolver].
//
// If the RCODE is zero, this function returns nil.
//
// Before invoking this function, make sure the response is valid
// for the request by calling [ValidateResponseForQuery].
func ResponseErrorFromRCODE(resp *Message) error {
	// 1. handle NXDOMAIN case by mapping it to EAI_NONAME
	if resp.Header.Rcode == dns.RcodeNameError {
		return ErrNoName
	}

	// 2. handle the case of lame referral by mapping it to EAI_NODATA
	if resp.Header.Rcode == dns.RcodeSuccess &&
		!resp.Header.AA &&
		!resp.Header.RA &&
		len(resp.Answers) == 0 {
		return ErrNoData
	}

	// 3. handle any other error by mapping to EAI_FAIL
	if resp.Header.Rcode != dns.RcodeSuccess {
		if resp.Header.Rcode == dns.RcodeServerFailure {
			return ErrServerTemporarilyMisbehaving
		}
		return ErrServerMisbehaving
	}
	return nil
}

// ResponseExtractValidAnswers extracts the RRs from the response whose
// name and class match the question that was asked. CNAME chains cannot
// occur, since we do not decode CNAME records.
//
// The list of valid RRs is returned in the same order as they appear
// in the response message. If the response does not contain any valid
// RRs, this function returns [ErrNoData].
func ResponseExtractValidAnswers(q0 Question, resp *Message) ([]Record, error) {
	valid := []Record{}
	for _, answer := range resp.Answers {
		if !responseEqualASCIIName(q0.Name, answer.Name) {
			continue
		}
		if q0.Class != answer.Class {
			continue
		}
		valid = append(valid, answer)
	}
	if len(valid) < 1 {
		return nil, ErrNoData
	}
	return valid, nil
}

// Response is a DNS response.
//
// Construct a new instance using [ParseResponse].
type Response struct {
	// Query is the original query message.
	Query *Message

	// Response is the response message.
	Response *Message

	// ValidRRs contains the valid RRs for the query.
	ValidRRs []Record
}

// ParseResponse returns a [*Response] given a query and response messages or an
// error if the two response message is not valid for the query.
func ParseResponse(query *Message, resp *Message) (*Response, error) {
	q0, err := ValidateResponseForQuery(query, resp)
	if err != nil {
		return nil, err
	}

	if err := ResponseErrorFromRCODE(resp); err != nil {
		return nil, err
	}

	rrs, err := ResponseExtractValidAnswers(q0, resp)
	if err != nil {
		return nil, err
	}

	rp := &Response{
		Query:    query,
		Response: resp,
		ValidRRs: rrs,
	}
	return rp, nil
}

// RecordsA returns all the A records in the response.
func (r *Response) RecordsA() ([]string, error) {
	out := make([]string, 0, len(r.ValidRRs))
	for _, rr := range r.ValidRRs {
		switch data := rr.Data.(type) {
		case A:
			out = append(out, data.String())
		}
	}
	if len(out) < 1 {
		return nil, ErrNoData
	}
	return out, nil
}
