// Package loader reads device data files (YAML, JSON, or CSV) into an
// ordered sequence of flat key/value records.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dynconf/dynconf/pkg/util"
)

// Load reads the data file at path and returns its records in file order.
// The format is chosen by extension: .yml/.yaml/.json/.csv. Anything else
// is a FormatError before any content is read.
func Load(path string) ([]*Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml", ".json":
		return loadYAML(path)
	case ".csv":
		return loadCSV(path)
	default:
		return nil, &util.FormatError{Path: path, Reason: fmt.Sprintf("unrecognized extension %q (expected .yml, .yaml, .json, or .csv)", filepath.Ext(path))}
	}
}

// loadYAML parses a YAML (or JSON — a YAML subset) list of mappings.
// Parsing goes through the yaml.Node API rather than straight Unmarshal
// so that each record's key order survives.
func loadYAML(path string) ([]*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data file %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &util.FormatError{Path: path, Reason: err.Error()}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &util.FormatError{Path: path, Reason: "empty document"}
	}

	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, &util.FormatError{Path: path, Reason: "top-level value must be a list of records"}
	}

	records := make([]*Record, 0, len(root.Content))
	for i, item := range root.Content {
		if item.Kind != yaml.MappingNode {
			return nil, &util.FormatError{Path: path, Reason: fmt.Sprintf("record %d is not a mapping", i+1)}
		}
		rec := NewRecord()
		for j := 0; j+1 < len(item.Content); j += 2 {
			keyNode, valNode := item.Content[j], item.Content[j+1]
			var value any
			if err := valNode.Decode(&value); err != nil {
				return nil, &util.FormatError{Path: path, Reason: fmt.Sprintf("record %d, key %q: %v", i+1, keyNode.Value, err)}
			}
			rec.Set(keyNode.Value, value)
		}
		records = append(records, rec)
	}
	return records, nil
}

// loadCSV parses a CSV file. The header row defines the key set; every
// data row must have exactly the header's column count.
func loadCSV(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading data file %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, &util.FormatError{Path: path, Reason: "missing header row"}
	}

	var records []*Record
	for row := 1; ; row++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, csv.ErrFieldCount) {
			return nil, &util.ShapeError{Path: path, Row: row, Reason: fmt.Sprintf("expected %d fields, got %d", len(header), len(fields))}
		}
		if err != nil {
			return nil, &util.FormatError{Path: path, Reason: err.Error()}
		}
		rec := NewRecord()
		for i, key := range header {
			rec.Set(key, fields[i])
		}
		records = append(records, rec)
	}
	return records, nil
}
