// Package codec reads and writes inventory snapshots and parses list-valued
// CMDB fields.
package codec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hostdrift/internal/domain"
)

// Snapshot is a captured inventory: live hosts, CMDB devices, or both
type Snapshot struct {
	Hosts   []domain.HostFact     `json:"hosts,omitempty" yaml:"hosts,omitempty"`
	Devices []domain.DeviceRecord `json:"devices,omitempty" yaml:"devices,omitempty"`
}

// Decoder reads a snapshot in one format
type Decoder interface {
	Decode(r io.Reader) (*Snapshot, error)
	Format() string
}

// Encoder writes a snapshot in one format
type Encoder interface {
	Encode(s *Snapshot, w io.Writer) error
	Format() string
}

// Codec is both
type Codec interface {
	Decoder
	Encoder
}

// ForPath picks a codec by file extension; anything not .json is YAML
func ForPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSONCodec()
	default:
		return NewYAMLCodec()
	}
}

// LoadSnapshot reads a snapshot file
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := ForPath(path).Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// SaveSnapshot writes a snapshot file, creating parent directories
func SaveSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	if err := ForPath(path).Encode(snap, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
