package results

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/ironsheep/seed-cell-size/internal/segmentation"
)

func sampleRecords() []segmentation.ShapeRecord {
	return []segmentation.ShapeRecord{
		{Identifier: 3, Width: 57, Length: 57, Area: 2500, Perimeter: 196, ConvexArea: 2500, CentroidRow: 99.5, CentroidCol: 99.5},
		{Identifier: 7, Width: 21, Length: 48, Area: 1210, Perimeter: 140, ConvexArea: 1288, CentroidRow: 12.345678901234, CentroidCol: 300.1},
	}
}

func TestHeader(t *testing.T) {
	want := []string{"identifier", "area", "centroid_col", "centroid_row", "convex_area", "length", "perimeter", "width"}
	if got := Header(); !reflect.DeepEqual(got, want) {
		t.Errorf("Header: got %v, want %v", got, want)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, sampleRecords())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 2 {
		t.Errorf("rows written: got %d, want 2", n)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("line count: got %d, want 3\n%s", len(lines), buf.String())
	}
	if lines[0] != "identifier,area,centroid_col,centroid_row,convex_area,length,perimeter,width" {
		t.Errorf("header line: got %q", lines[0])
	}
	if lines[1] != "3,2500,99.5,99.5,2500,57,196,57" {
		t.Errorf("first record: got %q", lines[1])
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 0 {
		t.Errorf("rows written: got %d, want 0", n)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(Header(), ",") {
		t.Errorf("empty output: got %q, want header only", got)
	}

	recs, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("Read of header-only file: got %v, want empty slice", recs)
	}
}

func TestWriteNonEmpty(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteNonEmpty(&buf, []segmentation.ShapeRecord{})
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("expected ErrNoRecords, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("WriteNonEmpty wrote %d bytes on empty input", buf.Len())
	}

	if _, err := WriteNonEmpty(&buf, sampleRecords()); err != nil {
		t.Errorf("WriteNonEmpty failed on records: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	want := sampleRecords()

	var buf bytes.Buffer
	if _, err := Write(&buf, want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("record count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Identifier != want[i].Identifier || got[i].Area != want[i].Area {
			t.Errorf("record %d: got id %d area %d, want id %d area %d",
				i, got[i].Identifier, got[i].Area, want[i].Identifier, want[i].Area)
		}
		if math.Abs(got[i].CentroidRow-want[i].CentroidRow) > 1e-9 ||
			math.Abs(got[i].CentroidCol-want[i].CentroidCol) > 1e-9 {
			t.Errorf("record %d centroid: got (%v, %v), want (%v, %v)",
				i, got[i].CentroidRow, got[i].CentroidCol, want[i].CentroidRow, want[i].CentroidCol)
		}
		if got[i] != want[i] {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRead_BadHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"unknown column", "identifier,area,colour\n"},
		{"missing columns", "identifier,area\n"},
		{"duplicate column", "identifier,identifier,area,centroid_col,centroid_row,convex_area,length,perimeter\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRead_BadValue(t *testing.T) {
	input := strings.Join(Header(), ",") + "\n1,abc,1,1,1,1,1,1\n"
	if _, err := Read(strings.NewReader(input)); err == nil {
		t.Error("expected error for non-numeric area")
	}
}
