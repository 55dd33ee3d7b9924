package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValuesDocument is the caller-supplied chart values file.
// A nil or empty document is valid and behaves as if no file was given.
type ValuesDocument map[string]any

// LoadValuesDocument reads and parses a values file. An empty path yields an
// empty document.
func LoadValuesDocument(path string) (ValuesDocument, error) {
	if path == "" {
		return ValuesDocument{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values file %s: %w", path, err)
	}

	return ParseValuesDocument(data)
}

// ParseValuesDocument parses YAML bytes into a values document.
func ParseValuesDocument(data []byte) (ValuesDocument, error) {
	var doc ValuesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse values document: %w", err)
	}
	if doc == nil {
		doc = ValuesDocument{}
	}
	return doc, nil
}

// Lookup returns the value at a dotted path such as "storage.endpoint".
func (d ValuesDocument) Lookup(path string) (any, bool) {
	var current any = map[string]any(d)
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String returns the value at path rendered as a string, or "" when absent.
func (d ValuesDocument) String(path string) string {
	v, ok := d.Lookup(path)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
