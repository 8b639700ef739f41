package json

import (
	"bytes"
	"encoding/json"
)

// StandardEncoder encodes bodies with encoding/json
type StandardEncoder struct {
	escapeHTML bool
}

func NewStandardEncoder(config Config) *StandardEncoder {
	return &StandardEncoder{escapeHTML: config.EscapeHTML}
}

// Marshal returns the compact body for v, without the newline Encode appends
func (e *StandardEncoder) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(e.escapeHTML)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (e *StandardEncoder) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (e *StandardEncoder) Library() JSONLibrary {
	return JSONLibraryStandard
}
