package schema

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// rawSchemaField is one {name, type, size} entry from the schema source.
type rawSchemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size uint8  `json:"size"`
}

// rawSchemaMessage is the {"fields": [...]} value for one message-type key.
type rawSchemaMessage struct {
	Fields []rawSchemaField `json:"fields"`
}

// Load parses a schema source document — an object keyed by the single
// character message type, each value holding an ordered field list — into a
// Catalog. Unknown field types are rejected; a field whose declared size
// contradicts its type's intrinsic width is rejected.
func Load(data []byte) (*Catalog, error) {
	var root map[string]rawSchemaMessage
	if err := jsonAPI.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("schema: parse failed: %w", err)
	}

	specs := make([]MsgSpec, 0, len(root))
	for key, msg := range root {
		if key == "" {
			continue
		}
		if len(key) != 1 {
			return nil, fmt.Errorf("schema: key %q: %w", key, ErrEmptyKey)
		}
		msgType := key[0]

		fields := make([]RawField, len(msg.Fields))
		for i, f := range msg.Fields {
			fields[i] = RawField{Name: f.Name, Type: f.Type, Size: f.Size}
		}

		spec, err := BuildMsgSpec(msgType, fields)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	return NewCatalog(specs), nil
}
