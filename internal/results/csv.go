// Package results serializes per-cell shape records as results.csv.
//
// The column set is fixed by Schema rather than derived from a sample record,
// so an empty record list still produces a well-formed file consisting of the
// header line only. Column order is deterministic: identifier first, then the
// remaining columns in case-insensitive lexicographic order.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ironsheep/seed-cell-size/internal/segmentation"
)

// ErrNoRecords is returned by WriteNonEmpty when there is nothing to write.
var ErrNoRecords = errors.New("no records to serialize")

// Column describes one CSV column.
type Column struct {
	Name   string
	format func(segmentation.ShapeRecord) string
	parse  func(*segmentation.ShapeRecord, string) error
}

var columns = []Column{
	intColumn("identifier", func(r *segmentation.ShapeRecord) *int { return &r.Identifier }),
	intColumn("width", func(r *segmentation.ShapeRecord) *int { return &r.Width }),
	intColumn("length", func(r *segmentation.ShapeRecord) *int { return &r.Length }),
	intColumn("area", func(r *segmentation.ShapeRecord) *int { return &r.Area }),
	intColumn("perimeter", func(r *segmentation.ShapeRecord) *int { return &r.Perimeter }),
	intColumn("convex_area", func(r *segmentation.ShapeRecord) *int { return &r.ConvexArea }),
	floatColumn("centroid_row", func(r *segmentation.ShapeRecord) *float64 { return &r.CentroidRow }),
	floatColumn("centroid_col", func(r *segmentation.ShapeRecord) *float64 { return &r.CentroidCol }),
}

func intColumn(name string, field func(*segmentation.ShapeRecord) *int) Column {
	return Column{
		Name: name,
		format: func(r segmentation.ShapeRecord) string {
			return strconv.Itoa(*field(&r))
		},
		parse: func(r *segmentation.ShapeRecord, s string) error {
			v, err := strconv.Atoi(s)
			if err != nil {
				return err
			}
			*field(r) = v
			return nil
		},
	}
}

func floatColumn(name string, field func(*segmentation.ShapeRecord) *float64) Column {
	return Column{
		Name: name,
		format: func(r segmentation.ShapeRecord) string {
			return strconv.FormatFloat(*field(&r), 'g', -1, 64)
		},
		parse: func(r *segmentation.ShapeRecord, s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}
			*field(r) = v
			return nil
		},
	}
}

// Schema returns the columns in output order.
func Schema() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name == "identifier" || out[j].Name == "identifier" {
			return out[i].Name == "identifier" && out[j].Name != "identifier"
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Header returns the column names in output order.
func Header() []string {
	schema := Schema()
	names := make([]string, len(schema))
	for i, c := range schema {
		names[i] = c.Name
	}
	return names
}

// Write emits the header followed by one line per record and returns the
// number of records written. Floats use the shortest representation that
// parses back to the same value, independent of locale.
func Write(w io.Writer, records []segmentation.ShapeRecord) (int, error) {
	schema := Schema()
	cw := csv.NewWriter(w)

	if err := cw.Write(Header()); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	line := make([]string, len(schema))
	for i, rec := range records {
		for j, c := range schema {
			line[j] = c.format(rec)
		}
		if err := cw.Write(line); err != nil {
			return i, fmt.Errorf("failed to write record %d: %w", rec.Identifier, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(records), fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(records), nil
}

// WriteNonEmpty is Write for callers that treat an empty result as a failure.
// It writes nothing and returns ErrNoRecords when records is empty.
func WriteNonEmpty(w io.Writer, records []segmentation.ShapeRecord) (int, error) {
	if len(records) == 0 {
		return 0, ErrNoRecords
	}
	return Write(w, records)
}

// Read parses output produced by Write. The header must name every schema
// column exactly once; column order is taken from the header.
func Read(r io.Reader) ([]segmentation.ShapeRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	byName := make(map[string]Column, len(columns))
	for _, c := range columns {
		byName[c.Name] = c
	}
	order := make([]Column, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		order[i] = c
	}
	if len(seen) != len(columns) {
		return nil, fmt.Errorf("header has %d columns, want %d", len(seen), len(columns))
	}

	records := make([]segmentation.ShapeRecord, 0)
	for {
		line, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", len(records)+1, err)
		}
		var rec segmentation.ShapeRecord
		for i, c := range order {
			if err := c.parse(&rec, line[i]); err != nil {
				return nil, fmt.Errorf("record %d column %s: %w", len(records)+1, c.Name, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
