package segmentation

// ShapeRecord is the flat per-cell row written to results.csv.
//
// Width and Length are the minor and major axis lengths truncated toward
// zero to whole pixels.
type ShapeRecord struct {
	Identifier  int     `json:"identifier"`
	Width       int     `json:"width"`
	Length      int     `json:"length"`
	Area        int     `json:"area"`
	Perimeter   int     `json:"perimeter"`
	ConvexArea  int     `json:"convex_area"`
	CentroidRow float64 `json:"centroid_row"`
	CentroidCol float64 `json:"centroid_col"`
}

// Record flattens a Region.
func (r Region) Record() ShapeRecord {
	return ShapeRecord{
		Identifier:  r.Identifier,
		Width:       int(r.MinorAxisLength),
		Length:      int(r.MajorAxisLength),
		Area:        r.Area,
		Perimeter:   r.Perimeter,
		ConvexArea:  r.ConvexArea,
		CentroidRow: r.CentroidRow,
		CentroidCol: r.CentroidCol,
	}
}

// Records flattens regions, keeping their order. The result is never nil.
func Records(regions []Region) []ShapeRecord {
	out := make([]ShapeRecord, 0, len(regions))
	for _, r := range regions {
		out = append(out, r.Record())
	}
	return out
}
