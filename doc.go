// SPDX-License-Identifier: GPL-3.0-or-later

// Package dnsstub is a minimal DNS stub forwarder.
//
// [EncodeName], [DecodeHeader], [DecodeQuestion], [DecodeRecord] and
// [DecodeMessage] implement the subset of the RFC1035 wire format we
// support: uncompressed names and A records. [*Message] keeps the header
// counts consistent with the question and answer sections.
//
// [*Handler] receives datagrams through [*Handler.OnPacket], forwards each
// question of a query as its own datagram to the upstream resolver and
// reassembles the response once every question has been answered. The
// transaction ID is what correlates upstream replies with the original
// query. [*Server] is the UDP receive loop driving a [*Handler].
//
// [NewQuery], [Exchange] and [ParseResponse] are the client side, used
// by the command line tool to query a running forwarder.
package dnsstub
