// Package schema builds and queries the message catalog: an immutable,
// post-load table mapping a single message-type byte to an ordered field
// list with precomputed offsets and total length.
package schema

import "fmt"

// FieldType is a tagged variant over the wire field encodings the catalog
// understands. Integer variants are fixed-width big-endian; STRING and
// BINARY carry a caller-declared fixed byte length.
type FieldType uint8

const (
	FieldChar FieldType = iota + 1
	FieldUint8
	FieldUint16
	FieldUint32
	FieldUint64
	FieldInt16
	FieldInt32
	FieldInt64
	FieldString
	FieldBinary
)

func (t FieldType) String() string {
	switch t {
	case FieldChar:
		return "char"
	case FieldUint8:
		return "uint8"
	case FieldUint16:
		return "uint16"
	case FieldUint32:
		return "uint32"
	case FieldUint64:
		return "uint64"
	case FieldInt16:
		return "int16"
	case FieldInt32:
		return "int32"
	case FieldInt64:
		return "int64"
	case FieldString:
		return "string"
	case FieldBinary:
		return "binary"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// intrinsicWidth returns the fixed wire width of integer/char variants, and
// whether the variant has a fixed intrinsic width at all (false for
// STRING/BINARY, whose width is declared per field).
func intrinsicWidth(t FieldType) (uint8, bool) {
	switch t {
	case FieldChar, FieldUint8:
		return 1, true
	case FieldUint16, FieldInt16:
		return 2, true
	case FieldUint32, FieldInt32:
		return 4, true
	case FieldUint64, FieldInt64:
		return 8, true
	default:
		return 0, false
	}
}

// FieldSpec describes one field within a message: its name, wire type,
// byte size, and byte offset from the start of the message.
type FieldSpec struct {
	Name   string
	Type   FieldType
	Size   uint8
	Offset uint32
}

// MsgSpec describes the field layout of one message type.
type MsgSpec struct {
	MsgType     byte
	TotalLength uint32
	Fields      []FieldSpec
}
