package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML policy file and overlays it on the built-in defaults.
// Sections or fields missing from the file keep their default values; lists
// present in the file replace the default list entirely.
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML policy data on top of the defaults and validates it.
// Empty or comment-only data yields the defaults.
func Parse(data []byte) (Table, error) {
	table := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&table); err != nil && !errors.Is(err, io.EOF) {
		return Table{}, fmt.Errorf("decode policy: %w", err)
	}

	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}

// LoadOrDefault loads the policy from path, or returns the defaults when
// path is empty
func LoadOrDefault(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Marshal renders the table as YAML
func Marshal(t Table) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode policy: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode policy: %w", err)
	}
	return buf.Bytes(), nil
}
