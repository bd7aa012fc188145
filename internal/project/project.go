// Package project flattens validated records into ordered output rows.
package project

import (
	"strings"

	"github.com/chatsift/chatsift/internal/schema"
)

// Column binds one flat output column to a dot path into the record.
type Column struct {
	Name string
	Path string
}

// Mapping is the ordered column set; its order is the CSV header order and
// the database column order.
type Mapping []Column

// Names returns the column names in declaration order.
func (m Mapping) Names() []string {
	names := make([]string, len(m))
	for i, c := range m {
		names[i] = c.Name
	}
	return names
}

// Row is one projected record: values aligned with the mapping's columns.
type Row struct {
	Columns []string
	Values  []any
}

// Map returns the row as column→value pairs for JSON payloads.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		out[c] = r.Values[i]
	}
	return out
}

// Project resolves every mapped path against the record. It runs after
// validation has already succeeded, so a missing or nil intermediate
// resolves to nil rather than an error.
func Project(rec schema.Record, mapping Mapping) Row {
	row := Row{Columns: mapping.Names(), Values: make([]any, len(mapping))}
	for i, col := range mapping {
		row.Values[i] = resolve(rec, col.Path)
	}
	return row
}

func resolve(rec schema.Record, path string) any {
	var cur any = rec
	for _, seg := range strings.Split(path, ".") {
		obj, ok := toObject(cur)
		if !ok {
			return nil
		}
		cur, ok = obj[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

func toObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case schema.Record:
		return map[string]any(t), true
	case map[string]any:
		return t, true
	}
	return nil, false
}
