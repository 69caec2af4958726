package fixture

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// document mirrors the on-disk layout {large: [...], medium: [...], small: [...]}.
type document struct {
	Large  []string `yaml:"large"`
	Medium []string `yaml:"medium"`
	Small  []string `yaml:"small"`
}

// LoadFile reads a fixture set from a YAML, JSON or CSV file. CSV files
// must carry a "class,path" header.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(string(data))
	case ".yaml", ".yml", ".json":
		return Parse(data)
	default:
		return nil, fmt.Errorf("unsupported fixtures file extension %q", filepath.Ext(path))
	}
}

// Parse decodes a YAML (or JSON) fixture document.
func Parse(data []byte) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return New(map[Class][]string{
		Large:  doc.Large,
		Medium: doc.Medium,
		Small:  doc.Small,
	}), nil
}

func parseCSV(content string) (*Set, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	header := rows[0]
	classCol, pathCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "class":
			classCol = i
		case "path":
			pathCol = i
		}
	}
	if classCol < 0 || pathCol < 0 {
		return nil, fmt.Errorf("CSV header must contain class and path columns")
	}

	entries := make(map[Class][]string, len(Classes))
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
		}
		class, err := ParseClass(row[classCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries[class] = append(entries[class], row[pathCol])
	}
	return New(entries), nil
}
