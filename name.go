// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"fmt"
	"strings"
)

const (
	// MaxLabelLength is the maximum length of a single label.
	MaxLabelLength = 63

	// MaxNameLength is the maximum length of an encoded name, terminator included.
	MaxNameLength = 255
)

// EncodeName encodes a dotted name as a sequence of length-prefixed labels
// terminated by a zero-length label. Empty segments are skipped, so the
// root name and fully qualified names are both accepted.
func EncodeName(name string) ([]byte, error) {
	out := make([]byte, 0, len(name)+2)
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			continue
		}
		if len(label) > MaxLabelLength {
			return nil, fmt.Errorf("%w: %q has %d bytes", ErrLabelTooLong, label, len(label))
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	out = append(out, 0)
	if len(out) > MaxNameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(out))
	}
	return out, nil
}

// DecodeName decodes a name at the beginning of data and returns it in
// dotted form, without the trailing dot, along with the number of bytes
// consumed including the terminator.
//
// Compression pointers are not supported and cause an error.
func DecodeName(data []byte) (string, int, error) {
	var labels []string
	off := 0
	for {
		if off >= len(data) {
			return "", 0, fmt.Errorf("%w: name runs past the end of the buffer", ErrCannotUnmarshalMessage)
		}
		length := int(data[off])
		off++
		if length == 0 {
			break
		}
		if length&0xC0 != 0 {
			return "", 0, fmt.Errorf("%w: unsupported label type 0x%02x at offset %d",
				ErrCannotUnmarshalMessage, length, off-1)
		}
		if off+length > len(data) {
			return "", 0, fmt.Errorf("%w: label runs past the end of the buffer", ErrCannotUnmarshalMessage)
		}
		labels = append(labels, string(data[off:off+length]))
		off += length
		// the terminator still follows
		if off+1 > MaxNameLength {
			return "", 0, fmt.Errorf("%w: at least %d bytes", ErrNameTooLong, off+1)
		}
	}
	return strings.Join(labels, "."), off, nil
}
