package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/models"
)

// LoadQueryDefinitions reads a YAML document of query definitions.
// Unknown keys are rejected so typos in a definition fail loudly.
func LoadQueryDefinitions(path string) (*models.QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query definitions: %w", err)
	}

	file, err := ParseQueryDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return file, nil
}

// ParseQueryDefinitions decodes a YAML query definition document and checks
// that every definition is named and names are unique.
func ParseQueryDefinitions(data []byte) (*models.QueryFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file models.QueryFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	seen := make(map[string]bool, len(file.Queries))
	for i, q := range file.Queries {
		if q.Name == "" {
			return nil, fmt.Errorf("query %d: name is required", i)
		}
		if seen[q.Name] {
			return nil, fmt.Errorf("query %q: defined more than once", q.Name)
		}
		seen[q.Name] = true
	}
	return &file, nil
}
