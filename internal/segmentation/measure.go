package segmentation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Bounds is the inclusive bounding box of a region in raster coordinates.
type Bounds struct {
	MinRow int `json:"min_row"`
	MinCol int `json:"min_col"`
	MaxRow int `json:"max_row"`
	MaxCol int `json:"max_col"`
}

// Region holds the shape statistics of one live id.
type Region struct {
	Identifier int `json:"identifier"`

	// Area is the pixel count.
	Area int `json:"area"`

	// CentroidRow and CentroidCol are the mean member pixel coordinates.
	CentroidRow float64 `json:"centroid_row"`
	CentroidCol float64 `json:"centroid_col"`

	// Perimeter counts member pixels with a 4-neighbour outside the region
	// or on the raster edge.
	Perimeter int `json:"perimeter"`

	// ConvexArea counts grid pixels whose centres fall inside the convex
	// hull of the member pixel centres.
	ConvexArea int `json:"convex_area"`

	// MajorAxisLength and MinorAxisLength belong to the ellipse with the
	// same second central moments as the region.
	MajorAxisLength float64 `json:"major_axis_length"`
	MinorAxisLength float64 `json:"minor_axis_length"`

	Bounds Bounds `json:"bounds"`
}

// rowExtent is the first and last member column on one row.
type rowExtent struct {
	row, min, max int
}

// accumulator collects running sums for one id during the single grid pass.
// Coordinates are taken relative to the first member pixel to keep the
// second moments well conditioned on large rasters.
type accumulator struct {
	originRow, originCol int

	count               int
	sumR, sumC          float64
	sumRR, sumCC, sumRC float64
	perimeter           int
	bounds              Bounds
	extents             []rowExtent
}

func (a *accumulator) add(row, col int) {
	if a.count == 0 {
		a.originRow, a.originCol = row, col
		a.bounds = Bounds{MinRow: row, MinCol: col, MaxRow: row, MaxCol: col}
	}
	r := float64(row - a.originRow)
	c := float64(col - a.originCol)
	a.count++
	a.sumR += r
	a.sumC += c
	a.sumRR += r * r
	a.sumCC += c * c
	a.sumRC += r * c

	if col < a.bounds.MinCol {
		a.bounds.MinCol = col
	}
	if col > a.bounds.MaxCol {
		a.bounds.MaxCol = col
	}
	a.bounds.MaxRow = row

	// Rows arrive in ascending order and columns ascend within a row.
	if n := len(a.extents); n > 0 && a.extents[n-1].row == row {
		a.extents[n-1].max = col
	} else {
		a.extents = append(a.extents, rowExtent{row: row, min: col, max: col})
	}
}

// Measure computes the Region statistics of every live id in one pass over
// the grid. Regions are returned in ascending id order. A segmentation with
// no live ids yields an empty, non-nil slice.
func Measure(s Segmentation) []Region {
	accs := make(map[int]*accumulator, len(s.ids))

	for row := 0; row < s.height; row++ {
		for col := 0; col < s.width; col++ {
			id := s.At(row, col)
			if id == 0 {
				continue
			}
			acc, ok := accs[id]
			if !ok {
				acc = &accumulator{}
				accs[id] = acc
			}
			acc.add(row, col)
			if s.onBoundary(row, col, id) {
				acc.perimeter++
			}
		}
	}

	ids := make([]int, 0, len(accs))
	for id := range accs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	regions := make([]Region, 0, len(ids))
	for _, id := range ids {
		regions = append(regions, accs[id].region(id))
	}
	return regions
}

// onBoundary reports whether a member pixel touches the raster edge or a
// 4-neighbour that is not part of the same region.
func (s Segmentation) onBoundary(row, col, id int) bool {
	if row == 0 || col == 0 || row == s.height-1 || col == s.width-1 {
		return true
	}
	for _, n := range fourNeighbours {
		if s.grid[(row+n.dr)*s.width+col+n.dc] != id {
			return true
		}
	}
	return false
}

func (a *accumulator) region(id int) Region {
	n := float64(a.count)
	meanR := a.sumR / n
	meanC := a.sumC / n

	covRR := a.sumRR/n - meanR*meanR
	covCC := a.sumCC/n - meanC*meanC
	covRC := a.sumRC/n - meanR*meanC

	major, minor := axisLengths(covRR, covCC, covRC)

	return Region{
		Identifier:      id,
		Area:            a.count,
		CentroidRow:     float64(a.originRow) + meanR,
		CentroidCol:     float64(a.originCol) + meanC,
		Perimeter:       a.perimeter,
		ConvexArea:      a.convexArea(),
		MajorAxisLength: major,
		MinorAxisLength: minor,
		Bounds:          a.bounds,
	}
}

// axisLengths returns 4*sqrt(λ) for the two eigenvalues of the covariance
// matrix, largest first. Round-off can make an eigenvalue slightly negative;
// those are clamped to zero.
func axisLengths(covRR, covCC, covRC float64) (major, minor float64) {
	sym := mat.NewSymDense(2, []float64{covRR, covRC, covRC, covCC})

	var eig mat.EigenSym
	var l1, l2 float64
	if eig.Factorize(sym, false) {
		vals := eig.Values(nil)
		l1, l2 = vals[1], vals[0]
	} else {
		mid := (covRR + covCC) / 2
		d := math.Sqrt(((covRR-covCC)/2)*((covRR-covCC)/2) + covRC*covRC)
		l1, l2 = mid+d, mid-d
	}
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return 4 * math.Sqrt(math.Max(l1, 0)), 4 * math.Sqrt(math.Max(l2, 0))
}

type hullPoint struct {
	x, y int // col, row
}

func cross(o, a, b hullPoint) int64 {
	return int64(a.x-o.x)*int64(b.y-o.y) - int64(a.y-o.y)*int64(b.x-o.x)
}

// convexHull returns the hull of points in counter-clockwise order using the
// monotone chain method. Collinear points are dropped.
func convexHull(points []hullPoint) []hullPoint {
	pts := make([]hullPoint, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].x != pts[j].x {
			return pts[i].x < pts[j].x
		}
		return pts[i].y < pts[j].y
	})

	// Remove duplicates.
	uniq := pts[:0]
	for i, p := range pts {
		if i == 0 || p != pts[i-1] {
			uniq = append(uniq, p)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		return pts
	}

	hull := make([]hullPoint, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// convexArea rasterises the hull of the member pixel centres back onto the
// grid. Only the first and last pixel of each row can be hull vertices, so
// those are the only candidates passed to the hull.
func (a *accumulator) convexArea() int {
	points := make([]hullPoint, 0, 2*len(a.extents))
	for _, e := range a.extents {
		points = append(points, hullPoint{x: e.min, y: e.row}, hullPoint{x: e.max, y: e.row})
	}
	hull := convexHull(points)
	if len(hull) < 3 {
		// All member centres are collinear, so the hull covers only the members.
		return a.count
	}

	const eps = 1e-9
	total := 0
	for row := a.bounds.MinRow; row <= a.bounds.MaxRow; row++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		y := float64(row)
		for i := range hull {
			p, q := hull[i], hull[(i+1)%len(hull)]
			py, qy := float64(p.y), float64(q.y)
			if (y < py && y < qy) || (y > py && y > qy) {
				continue
			}
			var xs []float64
			if p.y == q.y {
				xs = []float64{float64(p.x), float64(q.x)}
			} else {
				xs = []float64{float64(p.x) + (y-py)*float64(q.x-p.x)/(qy-py)}
			}
			for _, x := range xs {
				lo = math.Min(lo, x)
				hi = math.Max(hi, x)
			}
		}
		if lo > hi {
			continue
		}
		total += int(math.Floor(hi+eps)) - int(math.Ceil(lo-eps)) + 1
	}
	return total
}
