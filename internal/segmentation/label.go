package segmentation

import (
	"fmt"

	"github.com/ironsheep/seed-cell-size/internal/imaging"
)

// Connectivity is the pixel adjacency rule used to group pixels into regions.
type Connectivity int

const (
	// Four connects pixels that share an edge.
	Four Connectivity = 4

	// Eight connects pixels that share an edge or a corner.
	Eight Connectivity = 8
)

// Validate rejects anything other than Four or Eight.
func (c Connectivity) Validate() error {
	if c != Four && c != Eight {
		return fmt.Errorf("%w: connectivity %d must be 4 or 8", imaging.ErrInvalidParameter, int(c))
	}
	return nil
}

type offset struct{ dr, dc int }

var (
	fourNeighbours  = []offset{{-1, 0}, {0, -1}, {0, 1}, {1, 0}}
	eightNeighbours = []offset{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
)

func (c Connectivity) neighbours() []offset {
	if c == Four {
		return fourNeighbours
	}
	return eightNeighbours
}

// Label assigns a distinct positive id to every connected group of
// foreground pixels. When foreground is false the clear pixels of the mask
// are treated as foreground instead.
//
// Ids are handed out in raster scan order of each region's first pixel,
// starting at 1. Background pixels get id 0. Small ids do not imply small
// regions.
func Label(mask *imaging.BinaryMask, foreground bool, conn Connectivity) (Segmentation, error) {
	if err := conn.Validate(); err != nil {
		return Segmentation{}, err
	}
	width, height := mask.Width(), mask.Height()
	grid, sizes := labelGrid(mask.Bits(), width, height, foreground, conn)

	ids := make(map[int]struct{}, len(sizes))
	for id := 1; id < len(sizes); id++ {
		ids[id] = struct{}{}
	}
	return Segmentation{width: width, height: height, grid: grid, ids: ids}, nil
}

// labelGrid flood-fills every component and returns the id grid together with
// the pixel count of each id (index 0 unused).
func labelGrid(bits []bool, width, height int, foreground bool, conn Connectivity) ([]int, []int) {
	grid := make([]int, width*height)
	sizes := []int{0}
	neighbours := conn.neighbours()

	type point struct{ r, c int }
	var stack []point

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			idx := row*width + col
			if bits[idx] != foreground || grid[idx] != 0 {
				continue
			}

			id := len(sizes)
			size := 0
			grid[idx] = id
			stack = append(stack[:0], point{row, col})

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				size++

				for _, n := range neighbours {
					nr, nc := p.r+n.dr, p.c+n.dc
					if nr < 0 || nr >= height || nc < 0 || nc >= width {
						continue
					}
					nidx := nr*width + nc
					if bits[nidx] == foreground && grid[nidx] == 0 {
						grid[nidx] = id
						stack = append(stack, point{nr, nc})
					}
				}
			}
			sizes = append(sizes, size)
		}
	}
	return grid, sizes
}

// RemoveSmallObjects clears every foreground component with fewer than
// minSize pixels. Components with at least minSize pixels are left untouched,
// so minSize 0 and 1 return a mask equal to the input.
func RemoveSmallObjects(mask *imaging.BinaryMask, minSize int, conn Connectivity) (*imaging.BinaryMask, error) {
	if minSize < 0 {
		return nil, fmt.Errorf("%w: minimum object size %d must not be negative", imaging.ErrInvalidParameter, minSize)
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	width, height := mask.Width(), mask.Height()
	bits := mask.Bits()
	if minSize <= 1 {
		return imaging.MaskFromBits(width, height, bits), nil
	}

	grid, sizes := labelGrid(bits, width, height, true, conn)
	for i, id := range grid {
		if id != 0 && sizes[id] < minSize {
			bits[i] = false
		}
	}
	return imaging.MaskFromBits(width, height, bits), nil
}

// SuppressSmallFeatures removes foreground specks smaller than minSize and
// then fills background holes smaller than minSize by running the same
// filter on the inverted mask.
func SuppressSmallFeatures(mask *imaging.BinaryMask, minSize int, conn Connectivity) (*imaging.BinaryMask, error) {
	opened, err := RemoveSmallObjects(mask, minSize, conn)
	if err != nil {
		return nil, err
	}
	filled, err := RemoveSmallObjects(opened.Invert(), minSize, conn)
	if err != nil {
		return nil, err
	}
	return filled.Invert(), nil
}
