// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import "errors"

// Errors emitted by the wire codec.
var (
	// ErrCannotUnmarshalMessage indicates that a message is truncated or malformed.
	ErrCannotUnmarshalMessage = errors.New("cannot unmarshal DNS message")

	// ErrLabelTooLong indicates that a name contains a label longer than [MaxLabelLength].
	ErrLabelTooLong = errors.New("label too long")

	// ErrNameTooLong indicates that an encoded name exceeds [MaxNameLength].
	ErrNameTooLong = errors.New("name too long")

	// ErrUnsupportedType indicates a resource record type without a codec.
	ErrUnsupportedType = errors.New("unsupported resource record type")

	// ErrNotImplemented indicates a declared record type whose codec is missing.
	ErrNotImplemented = errors.New("not implemented")

	// ErrMissingRData indicates a record without RDATA or with RDATA of another type.
	ErrMissingRData = errors.New("missing or mismatched RDATA")

	// ErrTooManyRecords indicates a section that does not fit a 16-bit count.
	ErrTooManyRecords = errors.New("too many records in section")

	// ErrNoAnswerSection indicates adding an answer to a message without answer section.
	ErrNoAnswerSection = errors.New("message has no answer section")
)

// Errors emitted by [*Handler] and [*Server].
var (
	// ErrMessageTooLarge indicates an outbound message exceeding [MaxMessageSize].
	ErrMessageTooLarge = errors.New("message too large")

	// ErrServerRunning indicates that [*Server.Serve] is already running.
	ErrServerRunning = errors.New("server already running")
)
