package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/common/expfmt"
)

// WriteTextfile renders the registry in the Prometheus text exposition
// format, atomically replacing the target so a scraping node exporter never
// sees a partial file.
func WriteTextfile(path string) error {
	families, err := Registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".partkeeper-stats-*")
	if err != nil {
		return fmt.Errorf("creating stats tempfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			tmp.Close()
			return fmt.Errorf("encoding metrics: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing stats tempfile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing stats file: %w", err)
	}
	return nil
}
