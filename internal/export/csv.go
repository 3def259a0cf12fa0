// Package export writes snapshot export rows to CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"creator-analytics/internal/models"
)

var header = []string{"label", "value"}

// WriteCSV writes a header followed by one line per row.
func WriteCSV(w io.Writer, rows []models.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.Label, row.Value}); err != nil {
			return fmt.Errorf("write row %s: %w", row.Label, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename is the attachment name used for a shop's export.
func Filename(shopID string, r *models.DateRange) string {
	name := "snapshot-" + sanitize(shopID)
	if r != nil {
		if !r.Start.IsZero() {
			name += "-from-" + r.Start.UTC().Format("20060102")
		}
		if !r.End.IsZero() {
			name += "-to-" + r.End.UTC().Format("20060102")
		}
	}
	return name + ".csv"
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
