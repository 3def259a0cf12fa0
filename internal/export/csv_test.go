package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"creator-analytics/internal/models"
)

func TestWriteCSV(t *testing.T) {
	rows := []models.ExportRow{
		{Label: "shop_id", Value: "shop-1"},
		{Label: "total_revenue", Value: "1234.5"},
		{Label: "note", Value: `has "quotes", and commas`},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "label,value\nshop_id,shop-1\ntotal_revenue,1234.5\nnote,\"has \"\"quotes\"\", and commas\"\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if buf.String() != "label,value\n" {
		t.Errorf("got %q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSV_WriterError(t *testing.T) {
	if err := WriteCSV(failingWriter{}, []models.ExportRow{{Label: "a", Value: "b"}}); err == nil {
		t.Error("expected error from failing writer")
	}
}

func TestFilename(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		shop string
		r    *models.DateRange
		want string
	}{
		{"shop-1", nil, "snapshot-shop-1.csv"},
		{"my shop/../x", nil, "snapshot-my_shop____x.csv"},
		{"s", &models.DateRange{Start: jan, End: feb}, "snapshot-s-from-20240101-to-20240201.csv"},
		{"s", &models.DateRange{End: feb}, "snapshot-s-to-20240201.csv"},
	}
	for _, tt := range tests {
		if got := Filename(tt.shop, tt.r); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.shop, got, tt.want)
		}
	}
}
