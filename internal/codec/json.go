package codec

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONCodec handles JSON snapshots
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Decode reads a snapshot from JSON
func (c *JSONCodec) Decode(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &snap, nil
}

// Encode writes a snapshot as indented JSON
func (c *JSONCodec) Encode(snap *Snapshot, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
