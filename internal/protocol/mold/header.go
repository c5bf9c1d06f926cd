// Package mold decodes MoldUDP64-framed packets: the 20-byte
// session+sequence+count header plus a length-prefixed sequence of embedded
// application messages, rendered through the schema catalog and the
// non-allocating output buffer.
package mold

import "github.com/marketdata/moldfeed/internal/protocol/wire"

const (
	// HeaderSize is the fixed MoldUDP64 header length: 10-byte session,
	// 8-byte sequence number, 2-byte message count.
	HeaderSize = 20

	// SentinelMessageCount marks the end-of-session datagram: a packet
	// with this message count and no embedded blocks.
	SentinelMessageCount uint16 = 0xFFFF

	// SessionSize is the fixed byte length of the opaque session
	// identifier.
	SessionSize = 10
)

// PacketHeader is the parsed MoldUDP64 header.
type PacketHeader struct {
	Session        [SessionSize]byte
	SequenceNumber uint64
	MessageCount   uint16
}

// ParseHeader parses the first HeaderSize bytes of b. It reports false if b
// is shorter than HeaderSize; callers must have already checked len(b) or
// treat false as "no header, emit nothing" per the framing algorithm.
func ParseHeader(b []byte) (PacketHeader, bool) {
	if len(b) < HeaderSize {
		return PacketHeader{}, false
	}
	var h PacketHeader
	copy(h.Session[:], b[0:10])
	h.SequenceNumber = wire.ReadU64BE(b[10:18])
	h.MessageCount = wire.ReadU16BE(b[18:20])
	return h, true
}

// IsEndOfSession reports whether h is the end-of-session sentinel.
func (h PacketHeader) IsEndOfSession() bool {
	return h.MessageCount == SentinelMessageCount
}
