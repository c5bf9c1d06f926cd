package schema

// Catalog is the immutable, post-load table from a message-type byte to its
// field layout. Lookup is O(1): the key space is one byte, so the catalog is
// a direct 256-entry table rather than a hash map.
type Catalog struct {
	entries [256]*MsgSpec
}

// NewCatalog builds a Catalog from already-validated MsgSpecs. Use Load (or
// BuildMsgSpec) to construct MsgSpecs from a raw field-list description;
// this constructor is for callers (tests, Load) that already have MsgSpecs
// in hand.
func NewCatalog(specs []MsgSpec) *Catalog {
	c := &Catalog{}
	for i := range specs {
		spec := specs[i]
		c.entries[spec.MsgType] = &spec
	}
	return c
}

// Lookup returns the MsgSpec registered for msgType, or (nil, false) if the
// catalog has no entry for it.
func (c *Catalog) Lookup(msgType byte) (*MsgSpec, bool) {
	spec := c.entries[msgType]
	return spec, spec != nil
}

// RawField is one (name, type, size) triple from an unparsed schema source,
// in declaration order.
type RawField struct {
	Name string
	Type string
	Size uint8
}

// BuildMsgSpec assigns offsets to fields by prefix sum and validates each
// field per the catalog invariants: the name must be non-empty, the size
// must be non-zero, and for fixed-width integer variants the declared size
// must equal the variant's intrinsic width. total_length is the final
// cumulative offset.
func BuildMsgSpec(msgType byte, fields []RawField) (MsgSpec, error) {
	out := MsgSpec{MsgType: msgType, Fields: make([]FieldSpec, 0, len(fields))}
	var offset uint32

	for i, raw := range fields {
		if raw.Name == "" {
			return MsgSpec{}, FieldError{MsgType: msgType, FieldIndex: i, Reason: ErrEmptyFieldName}
		}
		if raw.Size == 0 {
			return MsgSpec{}, FieldError{MsgType: msgType, FieldIndex: i, FieldName: raw.Name, Reason: ErrZeroSize}
		}
		ft, ok := parseFieldType(raw.Type)
		if !ok {
			return MsgSpec{}, FieldError{MsgType: msgType, FieldIndex: i, FieldName: raw.Name, Reason: ErrUnknownFieldType}
		}
		if want, fixed := intrinsicWidth(ft); fixed && raw.Size != want {
			return MsgSpec{}, FieldError{
				MsgType:    msgType,
				FieldIndex: i,
				FieldName:  raw.Name,
				Reason:     WidthMismatchError{Type: ft, Declared: raw.Size, Want: want},
			}
		}

		out.Fields = append(out.Fields, FieldSpec{
			Name:   raw.Name,
			Type:   ft,
			Size:   raw.Size,
			Offset: offset,
		})
		offset += uint32(raw.Size)
	}

	out.TotalLength = offset
	return out, nil
}

func parseFieldType(s string) (FieldType, bool) {
	switch s {
	case "char":
		return FieldChar, true
	case "uint8":
		return FieldUint8, true
	case "uint16":
		return FieldUint16, true
	case "uint32":
		return FieldUint32, true
	case "uint64":
		return FieldUint64, true
	case "int16":
		return FieldInt16, true
	case "int32":
		return FieldInt32, true
	case "int64":
		return FieldInt64, true
	case "string":
		return FieldString, true
	case "binary":
		return FieldBinary, true
	default:
		return 0, false
	}
}
