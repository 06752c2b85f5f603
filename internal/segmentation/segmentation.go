package segmentation

import (
	"fmt"
	"image"
	"sort"

	"github.com/ironsheep/seed-cell-size/internal/imaging"
)

// Segmentation is a grid of region ids plus the set of ids still considered
// live. Id 0 is background.
//
// The grid is written once by Label and shared, read-only, by every
// Segmentation derived from it. Filtering stages only shrink the id set, so
// removing a region never touches pixel data and never alters another region.
// Segmentation values are safe to pass between goroutines.
type Segmentation struct {
	width  int
	height int
	grid   []int
	ids    map[int]struct{}
}

// Width returns the number of columns.
func (s Segmentation) Width() int { return s.width }

// Height returns the number of rows.
func (s Segmentation) Height() int { return s.height }

// At returns the live id at (row, col), or 0 if the pixel is background or
// belongs to a removed region.
func (s Segmentation) At(row, col int) int {
	id := s.grid[row*s.width+col]
	if id == 0 {
		return 0
	}
	if _, ok := s.ids[id]; !ok {
		return 0
	}
	return id
}

// Len returns the number of live regions.
func (s Segmentation) Len() int { return len(s.ids) }

// Has reports whether id is live.
func (s Segmentation) Has(id int) bool {
	_, ok := s.ids[id]
	return ok
}

// Identifiers returns the live ids in ascending order.
func (s Segmentation) Identifiers() []int {
	out := make([]int, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Without returns a segmentation sharing the same grid with the given ids
// removed from the live set. Ids that are not live are ignored.
func (s Segmentation) Without(ids ...int) Segmentation {
	drop := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := make(map[int]struct{}, len(s.ids))
	for id := range s.ids {
		if _, ok := drop[id]; !ok {
			kept[id] = struct{}{}
		}
	}
	return Segmentation{width: s.width, height: s.height, grid: s.grid, ids: kept}
}

// Areas counts the pixels of every live region in the current state.
func (s Segmentation) Areas() map[int]int {
	areas := make(map[int]int, len(s.ids))
	for _, id := range s.grid {
		if id == 0 {
			continue
		}
		if _, ok := s.ids[id]; ok {
			areas[id]++
		}
	}
	return areas
}

// Mask returns the live region pixels as a binary mask.
func (s Segmentation) Mask() *imaging.BinaryMask {
	bits := make([]bool, len(s.grid))
	for i, id := range s.grid {
		if id != 0 {
			_, bits[i] = s.ids[id]
		}
	}
	return imaging.MaskFromBits(s.width, s.height, bits)
}

// LabelImage encodes the live ids as a 16-bit grayscale image, saturating at
// 65535. It is meant for debug output, not for lossless storage.
func (s Segmentation) LabelImage() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, s.width, s.height))
	for row := 0; row < s.height; row++ {
		for col := 0; col < s.width; col++ {
			id := s.At(row, col)
			if id > 0xffff {
				id = 0xffff
			}
			i := img.PixOffset(col, row)
			img.Pix[i] = uint8(id >> 8)
			img.Pix[i+1] = uint8(id)
		}
	}
	return img
}

// ClearBorder removes every live region that owns a pixel on the outer edge
// of the raster. Applying it twice gives the same result as applying it once.
func ClearBorder(s Segmentation) Segmentation {
	touching := make(map[int]struct{})
	mark := func(row, col int) {
		if id := s.At(row, col); id != 0 {
			touching[id] = struct{}{}
		}
	}
	for col := 0; col < s.width; col++ {
		mark(0, col)
		mark(s.height-1, col)
	}
	for row := 0; row < s.height; row++ {
		mark(row, 0)
		mark(row, s.width-1)
	}

	drop := make([]int, 0, len(touching))
	for id := range touching {
		drop = append(drop, id)
	}
	return s.Without(drop...)
}

// DefaultAreaThreshold is the minimum cell area, in pixels, kept by the seed
// cell pipeline.
const DefaultAreaThreshold = 1000

// PruneSmallRegions removes every live region whose current area is strictly
// below threshold. Areas are recomputed from s, so the result does not depend
// on which other filters ran before.
func PruneSmallRegions(s Segmentation, threshold int) (Segmentation, error) {
	if threshold < 0 {
		return Segmentation{}, fmt.Errorf("%w: area threshold %d must not be negative", imaging.ErrInvalidParameter, threshold)
	}
	var drop []int
	for id, area := range s.Areas() {
		if area < threshold {
			drop = append(drop, id)
		}
	}
	return s.Without(drop...), nil
}
