package mold

import (
	"github.com/marketdata/moldfeed/internal/protocol/render"
	"github.com/marketdata/moldfeed/internal/protocol/schema"
	"github.com/marketdata/moldfeed/internal/protocol/wire"
)

// DecodeOptions controls rendering detail only; it never changes framing
// behavior.
type DecodeOptions struct {
	// Verbose prefixes each rendered field with "<name>: ".
	Verbose bool
}

// Decode parses one MoldUDP64 packet and appends its rendered text to out,
// which is reset at the start of the call. It returns the number of bytes
// written. Decode never fails: truncated or malformed input yields
// zero or more complete lines and decoding stops cleanly at the first byte
// it cannot trust, per the framing algorithm.
func Decode(packet []byte, opt DecodeOptions, cat *schema.Catalog, out *render.Buffer) int {
	out.Reset()

	hdr, ok := ParseHeader(packet)
	if !ok {
		return 0
	}

	if hdr.IsEndOfSession() {
		writeSentinelLine(out, hdr)
		return out.Len()
	}

	off := HeaderSize
	for i := 0; i < int(hdr.MessageCount); i++ {
		if len(packet)-off < 2 {
			break
		}
		msgLen := int(wire.ReadU16BE(packet[off : off+2]))
		off += 2
		if msgLen > len(packet)-off {
			break
		}
		if msgLen == 0 {
			continue
		}

		msg := packet[off : off+msgLen]
		writeMessageLine(out, hdr, uint64(i), msg, cat, opt)
		off += msgLen
	}

	return out.Len()
}

func writeSentinelLine(out *render.Buffer, hdr PacketHeader) {
	out.AppendRaw(">> {'")
	out.AppendSanitized(hdr.Session[:], SessionSize)
	out.AppendRaw("', ")
	out.AppendUint(hdr.SequenceNumber)
	out.AppendRaw(", 65535}\n")
}

func writeMessageLine(out *render.Buffer, hdr PacketHeader, index uint64, msg []byte, cat *schema.Catalog, opt DecodeOptions) {
	msgType := msg[0]

	out.AppendRaw(">> {'")
	out.AppendSanitized(hdr.Session[:], SessionSize)
	out.AppendRaw("', ")
	out.AppendUint(hdr.SequenceNumber + index)
	out.AppendRaw(", ")
	out.AppendUint(uint64(hdr.MessageCount))
	out.AppendRaw(",'")
	out.AppendByte(msgType)
	out.AppendRaw("'")

	if spec, found := cat.Lookup(msgType); found {
		renderFields(out, msg[1:], spec.Fields, opt.Verbose)
	}

	out.AppendRaw("}\n")
}

// renderFields appends ", '<value>'" for each field that fits entirely
// within msg, the message bytes after the type byte (field offsets count
// from there). msg_len and the spec's total length may disagree (schema
// evolution at the feed); the field list is rendered only as far as msg
// actually has bytes for, then stops.
func renderFields(out *render.Buffer, msg []byte, fields []schema.FieldSpec, verbose bool) {
	for _, f := range fields {
		end := int(f.Offset) + int(f.Size)
		if end > len(msg) {
			break
		}
		out.AppendRaw(", '")
		if verbose {
			out.AppendFieldName(f.Name)
		}
		renderValue(out, msg[f.Offset:end], f.Type)
		out.AppendRaw("'")
	}
}

func renderValue(out *render.Buffer, v []byte, t schema.FieldType) {
	switch t {
	case schema.FieldChar:
		out.AppendByte(v[0])
	case schema.FieldUint8:
		out.AppendUint(uint64(v[0]))
	case schema.FieldUint16:
		out.AppendUint(uint64(wire.ReadU16BE(v)))
	case schema.FieldUint32:
		out.AppendUint(uint64(wire.ReadU32BE(v)))
	case schema.FieldUint64:
		out.AppendUint(wire.ReadU64BE(v))
	case schema.FieldInt16:
		out.AppendInt(int64(wire.ReadI16BE(v)))
	case schema.FieldInt32:
		out.AppendInt(int64(wire.ReadI32BE(v)))
	case schema.FieldInt64:
		out.AppendInt(wire.ReadI64BE(v))
	case schema.FieldString, schema.FieldBinary:
		out.AppendSanitized(v, len(v))
	}
}
