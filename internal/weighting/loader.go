package weighting

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/polltrend/internal/contracts"
)

// LoadTables reads factor tables from a YAML file and layers them over the
// defaults. Unknown top-level keys fail immediately.
//
//	modality:
//	  Online: 0.85
//	pollster:
//	  Policy Voice: 1.1
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read weighting file: %w", err)
	}
	return ParseTables(data)
}

// ParseTables decodes YAML factor tables layered over DefaultTables
func ParseTables(data []byte) (Tables, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return DefaultTables(), nil
	}

	var override Tables
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 오타 필드 즉시 실패
	if err := dec.Decode(&override); err != nil {
		return Tables{}, &contracts.ConfigError{Field: "weighting.file", Message: err.Error()}
	}

	tables := DefaultTables()
	merge(tables.Modality, override.Modality)
	merge(tables.Population, override.Population)
	merge(tables.Pollster, override.Pollster)

	return tables, nil
}

// merge copies src into dst, replacing keys that differ only in case
func merge(dst, src map[string]float64) {
	for k, v := range src {
		for existing := range dst {
			if strings.EqualFold(existing, k) {
				delete(dst, existing)
			}
		}
		dst[k] = v
	}
}
