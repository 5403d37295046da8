package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/the-carbon-must-flow/internal/analytics"
	"github.com/Veraticus/the-carbon-must-flow/internal/emissions"
	"gopkg.in/yaml.v3"
)

// Heuristics groups the tunable tables read from analytics.tables_file.
type Heuristics struct {
	Conversion emissions.Conversion `yaml:"conversion"`
	Analytics  analytics.Tables     `yaml:"analytics"`
}

// DefaultHeuristics returns the built-in tables.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		Analytics:  analytics.DefaultTables(),
		Conversion: emissions.DefaultConversion(),
	}
}

// LoadHeuristics reads a YAML heuristics file. An empty path yields the
// built-ins; fields missing from the file keep their built-in values.
// Unknown keys are rejected.
func LoadHeuristics(path string) (Heuristics, error) {
	if path == "" {
		return DefaultHeuristics(), nil
	}

	f, err := os.Open(ExpandPath(path))
	if err != nil {
		return Heuristics{}, fmt.Errorf("failed to open heuristics file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeHeuristics(f)
}

// DecodeHeuristics parses heuristics YAML from r.
func DecodeHeuristics(r io.Reader) (Heuristics, error) {
	var h Heuristics
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&h); err != nil && !errors.Is(err, io.EOF) {
		return Heuristics{}, fmt.Errorf("invalid heuristics file: %w", err)
	}

	h.Analytics = h.Analytics.WithDefaults()
	h.Conversion = h.Conversion.WithDefaults()
	return h, nil
}
