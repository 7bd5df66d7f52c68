// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"net"
	"testing"

	"github.com/bassosimone/runtimex"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func codecraftersLabels() []byte {
	return []byte{
		12, 'c', 'o', 'd', 'e', 'c', 'r', 'a', 'f', 't', 'e', 'r', 's',
		2, 'i', 'o',
		0,
	}
}

func TestRecordFromQuestionAndResolve(t *testing.T) {
	rr := RecordFromQuestion(NewQuestion("codecrafters.io"))
	require.Equal(t, Record{Name: "codecrafters.io", Type: dns.TypeA, Class: dns.ClassINET}, rr)
	require.Nil(t, rr.Data)

	require.NoError(t, rr.Resolve())
	require.Equal(t, StubAddress, rr.Data)
	require.Zero(t, rr.TTL)

	data, err := rr.Encode()
	require.NoError(t, err)
	expected := append(codecraftersLabels(), 0, 1, 0, 1, 0, 0, 0, 0, 0, 4, 8, 8, 8, 8)
	require.Equal(t, expected, data)
}

func TestRecordResolveUnsupported(t *testing.T) {
	rr := RecordFromQuestion(Question{Name: "example.com", Type: dns.TypeAAAA, Class: dns.ClassINET})
	require.ErrorIs(t, rr.Resolve(), ErrUnsupportedType)
	require.Nil(t, rr.Data)
}

func TestRecordEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		rr   Record
		err  error
	}{
		{"Unresolved", Record{Name: "example.com", Type: dns.TypeA, Class: dns.ClassINET}, ErrMissingRData},
		{"MismatchedType", Record{Name: "example.com", Type: dns.TypeCNAME, Class: dns.ClassINET, Data: A{1, 1, 1, 1}}, ErrMissingRData},
		{"CNAME", Record{Name: "example.com", Type: dns.TypeCNAME, Class: dns.ClassINET, Data: CNAME{"example.org"}}, ErrNotImplemented},
		{"LabelTooLong", Record{Name: string(make([]byte, 64)), Type: dns.TypeA, Class: dns.ClassINET, Data: A{}}, ErrLabelTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.rr.Encode()
			require.ErrorIs(t, err, tt.err)
			require.Nil(t, data)
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	rr := Record{Name: "example.com", Type: dns.TypeA, Class: dns.ClassINET, TTL: 3600, Data: A{93, 184, 216, 34}}
	data, err := rr.Encode()
	require.NoError(t, err)

	decoded, consumed, err := DecodeRecord(append(data, 1, 2, 3))
	require.NoError(t, err)
	require.Equal(t, rr, decoded)
	require.Equal(t, len(data), consumed)
}

func TestDecodeRecordFromMiekg(t *testing.T) {
	rr := &dns.A{
		Hdr: dns.RR_Header{Name: "codecrafters.io.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
		A:   net.IPv4(76, 76, 21, 21),
	}
	buffer := make([]byte, 64)
	count := runtimex.PanicOnError1(dns.PackRR(rr, buffer, 0, nil, false))

	decoded, consumed, err := DecodeRecord(buffer[:count])
	require.NoError(t, err)
	require.Equal(t, count, consumed)
	require.Equal(t, Record{
		Name:  "codecrafters.io",
		Type:  dns.TypeA,
		Class: dns.ClassINET,
		TTL:   60,
		Data:  A{76, 76, 21, 21},
	}, decoded)
}

func TestDecodeRecordErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		err   error
	}{
		{"BadName", []byte{5, 'a'}, ErrCannotUnmarshalMessage},
		{"TruncatedFixedFields", append(codecraftersLabels(), 0, 1, 0, 1, 0, 0), ErrCannotUnmarshalMessage},
		{"BadRDLength", append(codecraftersLabels(), 0, 1, 0, 1, 0, 0, 0, 0, 0, 2, 8, 8), ErrCannotUnmarshalMessage},
		{"CNAME", append(codecraftersLabels(), 0, 5, 0, 1, 0, 0, 0, 0, 0, 1, 0), ErrNotImplemented},
		{"TXT", append(codecraftersLabels(), 0, 16, 0, 1, 0, 0, 0, 0, 0, 2, 1, 'x'), ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, consumed, err := DecodeRecord(tt.input)
			require.ErrorIs(t, err, tt.err)
			require.Zero(t, consumed)
		})
	}
}
