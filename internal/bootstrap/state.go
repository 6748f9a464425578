package bootstrap

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot records where every managed table's range columns stood at one
// instant. A later run derives a rate of change from the distance travelled
// since the snapshot was taken.
type Snapshot struct {
	Time   time.Time                   `yaml:"time"`
	Tables map[string]map[string]int64 `yaml:"tables"`
}

// WriteSnapshot serialises the snapshot as YAML.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding state snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot parses a snapshot, rejecting documents with unknown keys.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding state snapshot: %w", err)
	}
	s.Time = s.Time.UTC()
	return &s, nil
}
