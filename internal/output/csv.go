// Package output writes projected rows to CSV.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/chatsift/chatsift/internal/project"
)

// WriteCSV emits a header row followed by one row per projected record,
// columns in mapping order. The header is written even when rows is empty.
func WriteCSV(w io.Writer, mapping project.Mapping, rows []project.Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(mapping.Names()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		rec := make([]string, len(row.Values))
		for i, v := range row.Values {
			rec[i] = cell(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the projection to path, creating or truncating it.
func WriteCSVFile(path string, mapping project.Mapping, rows []project.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output csv: %w", err)
	}
	if err := WriteCSV(f, mapping, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// cell stringifies a projected value. Nil becomes the empty cell.
func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}
