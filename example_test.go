// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub_test

import (
	"fmt"

	"github.com/bassosimone/dnsstub"
	"github.com/bassosimone/runtimex"
	"github.com/miekg/dns"
)

// Use deterministic query ID to have deterministic output.
//
// In production you should use [dns.Id].
func randomQueryID() uint16 {
	return 37
}

func Example_generateQuery() {
	query := dnsstub.NewQuery("www.example.com", dns.TypeA)
	query.ID = randomQueryID()
	msg := runtimex.PanicOnError1(query.NewMessage())
	fmt.Printf("%s\n", msg.String())

	// Output:
	//
	// ;; opcode: QUERY, status: NOERROR, id: 37
	// ;; flags: rd; QUERY: 1, ANSWER: 0, AUTHORITY: 0, ADDITIONAL: 0
	//
	// ;; QUESTION SECTION:
	// ;www.example.com.	IN	 A
}

func Example_stubResponse() {
	query := dnsstub.NewQuery("www.example.com", dns.TypeA)
	query.ID = randomQueryID()
	msg := runtimex.PanicOnError1(query.NewMessage())
	resp := runtimex.PanicOnError1(dnsstub.BuildStubResponse(msg))
	fmt.Printf("%s\n", resp.String())

	// Output:
	//
	// ;; opcode: QUERY, status: NOERROR, id: 37
	// ;; flags: qr rd; QUERY: 1, ANSWER: 1, AUTHORITY: 0, ADDITIONAL: 0
	//
	// ;; QUESTION SECTION:
	// ;www.example.com.	IN	 A
	//
	// ;; ANSWER SECTION:
	// www.example.com.	0	IN	A	8.8.8.8
}

func Example_encodeHeader() {
	header := dnsstub.Header{
		ID:      1234,
		QR:      true,
		Opcode:  2,
		AA:      true,
		RD:      true,
		Z:       7,
		Rcode:   15,
		QDCount: 2,
		ANCount: 2,
		NSCount: 7,
		ARCount: 8,
	}
	fmt.Println(header.Encode())

	// Output:
	// [4 210 149 127 0 2 0 2 0 7 0 8]
}

func Example_parseResponse() {
	query := dnsstub.NewQuery("www.example.com", dns.TypeA)
	query.ID = randomQueryID()
	msg := runtimex.PanicOnError1(query.NewMessage())

	raw := runtimex.PanicOnError1(runtimex.PanicOnError1(dnsstub.BuildStubResponse(msg)).Encode())
	resp, _, err := dnsstub.DecodeMessage(raw)
	if err != nil {
		panic(err)
	}

	parsed := runtimex.PanicOnError1(dnsstub.ParseResponse(msg, resp))
	fmt.Println(runtimex.PanicOnError1(parsed.RecordsA()))

	// Output:
	// [8.8.8.8]
}
