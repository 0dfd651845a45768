package adapter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// record is one input row with every value rendered as a string.
// A key that is present with an empty value is distinct from an absent key.
type record map[string]string

// records is a parsed input file.
type records struct {
	columns []string
	rows    []record
}

func (rs *records) hasColumn(name string) bool {
	for _, c := range rs.columns {
		if c == name {
			return true
		}
	}
	return false
}

// missing returns the names in required that are not columns.
func (rs *records) missing(required ...string) []string {
	var out []string
	for _, name := range required {
		if !rs.hasColumn(name) {
			out = append(out, name)
		}
	}
	return out
}

var utf8BOM = []byte("\ufeff")

// readRecords parses a .csv, .tsv or .jsonl file by extension.
func readRecords(path string) (*records, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseDelimited(data, ',')
	case ".tsv":
		return parseDelimited(data, '\t')
	case ".jsonl":
		return parseJSONL(data)
	default:
		return nil, fmt.Errorf("unsupported input %s: want .csv, .tsv or .jsonl", filepath.Base(path))
	}
}

func parseDelimited(data []byte, sep rune) (*records, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	if sep == '\t' {
		r.LazyQuotes = true
	}

	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse delimited input: %w", err)
	}
	if len(all) == 0 {
		return &records{}, nil
	}

	header := make([]string, len(all[0]))
	for i, h := range all[0] {
		header[i] = strings.TrimSpace(h)
	}
	rs := &records{columns: header}
	for _, line := range all[1:] {
		if len(line) == 1 && strings.TrimSpace(line[0]) == "" {
			continue
		}
		rec := make(record, len(header))
		for i, col := range header {
			if i < len(line) {
				rec[col] = line[i]
			}
		}
		rs.rows = append(rs.rows, rec)
	}
	return rs, nil
}

func parseJSONL(data []byte) (*records, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	rs := &records{}
	seen := make(map[string]bool)
	line := 0
	for dec.More() {
		line++
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", line, err)
		}
		rec := make(record, len(obj))
		for k, v := range obj {
			if !seen[k] {
				seen[k] = true
				rs.columns = append(rs.columns, k)
			}
			s, ok := stringify(v)
			if ok {
				rec[k] = s
			}
		}
		rs.rows = append(rs.rows, rec)
	}
	return rs, nil
}

// stringify renders a decoded JSON value. null reports !ok so that it
// reads as a missing value.
func stringify(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return fmt.Sprint(x), true
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x), true
		}
		return string(b), true
	}
}
