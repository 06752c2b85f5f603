package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/effect"
)

var (
	// ErrInvalidParameter is returned when a stage parameter is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrMalformedInput is returned when raster data does not match its declared shape.
	ErrMalformedInput = errors.New("malformed input")
)

// Raster is an immutable single-channel intensity grid.
//
// Samples are stored row-major as float64 so that 8-bit and 16-bit sources
// share one representation. Depth records the bit depth of the source (8 or
// 16) and is used when the raster is encoded again.
type Raster struct {
	width  int
	height int
	depth  int
	pix    []float64
}

// NewRaster builds a raster from row-major samples. The samples are copied.
func NewRaster(width, height int, samples []float64, depth int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: raster dimensions %dx%d must be positive", ErrMalformedInput, width, height)
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("%w: %d samples for a %dx%d raster", ErrMalformedInput, len(samples), width, height)
	}
	if depth != 8 && depth != 16 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrMalformedInput, depth)
	}
	pix := make([]float64, len(samples))
	copy(pix, samples)
	return &Raster{width: width, height: height, depth: depth, pix: pix}, nil
}

// RasterFromImage converts a decoded image into a grayscale raster.
//
// 16-bit grayscale images keep their samples unchanged. Every other color
// model is reduced to 8-bit luminance.
func RasterFromImage(img image.Image) (*Raster, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrMalformedInput)
	}

	pix := make([]float64, width*height)

	if g16, ok := img.(*image.Gray16); ok {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pix[y*width+x] = float64(g16.Gray16At(x+bounds.Min.X, y+bounds.Min.Y).Y)
			}
		}
		return &Raster{width: width, height: height, depth: 16, pix: pix}, nil
	}

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pix[y*width+x] = float64(gray.GrayAt(x+bounds.Min.X, y+bounds.Min.Y).Y)
			}
		}
		return &Raster{width: width, height: height, depth: 8, pix: pix}, nil
	}

	// Grayscale writes the luminance into all three channels.
	rgba := effect.Grayscale(img)
	gb := rgba.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix[y*width+x] = float64(rgba.RGBAAt(x+gb.Min.X, y+gb.Min.Y).R)
		}
	}
	return &Raster{width: width, height: height, depth: 8, pix: pix}, nil
}

// Width returns the number of columns.
func (r *Raster) Width() int { return r.width }

// Height returns the number of rows.
func (r *Raster) Height() int { return r.height }

// Depth returns the source bit depth (8 or 16).
func (r *Raster) Depth() int { return r.depth }

// At returns the sample at (row, col). The caller must stay in bounds.
func (r *Raster) At(row, col int) float64 {
	return r.pix[row*r.width+col]
}

// Max returns the largest sample value.
func (r *Raster) Max() float64 {
	m := math.Inf(-1)
	for _, v := range r.pix {
		if v > m {
			m = v
		}
	}
	return m
}

// Image encodes the raster as *image.Gray or *image.Gray16 depending on depth.
// Samples are rounded and clamped to the representable range.
func (r *Raster) Image() image.Image {
	rect := image.Rect(0, 0, r.width, r.height)
	if r.depth == 16 {
		img := image.NewGray16(rect)
		for i, v := range r.pix {
			img.SetGray16(i%r.width, i/r.width, color.Gray16{Y: uint16(clampFloat(math.Round(v), 0, 65535))})
		}
		return img
	}
	img := image.NewGray(rect)
	for i, v := range r.pix {
		img.Pix[(i/r.width)*img.Stride+i%r.width] = uint8(clampFloat(math.Round(v), 0, 255))
	}
	return img
}

// BinaryMask is an immutable boolean grid with the dimensions of its source raster.
type BinaryMask struct {
	width  int
	height int
	bits   []bool
}

// NewBinaryMask builds a mask from row-major values. The values are copied.
func NewBinaryMask(width, height int, values []bool) (*BinaryMask, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: mask dimensions %dx%d must be positive", ErrMalformedInput, width, height)
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("%w: %d values for a %dx%d mask", ErrMalformedInput, len(values), width, height)
	}
	bits := make([]bool, len(values))
	copy(bits, values)
	return &BinaryMask{width: width, height: height, bits: bits}, nil
}

// MaskFromBits adopts a freshly built slice as a mask without copying it.
// The caller must not retain or modify bits afterwards.
func MaskFromBits(width, height int, bits []bool) *BinaryMask {
	return &BinaryMask{width: width, height: height, bits: bits}
}

// Width returns the number of columns.
func (m *BinaryMask) Width() int { return m.width }

// Height returns the number of rows.
func (m *BinaryMask) Height() int { return m.height }

// At reports whether (row, col) is set.
func (m *BinaryMask) At(row, col int) bool {
	return m.bits[row*m.width+col]
}

// Count returns the number of set pixels.
func (m *BinaryMask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Bits returns a copy of the row-major values.
func (m *BinaryMask) Bits() []bool {
	out := make([]bool, len(m.bits))
	copy(out, m.bits)
	return out
}

// Invert returns a new mask with every pixel flipped.
func (m *BinaryMask) Invert() *BinaryMask {
	bits := make([]bool, len(m.bits))
	for i, b := range m.bits {
		bits[i] = !b
	}
	return MaskFromBits(m.width, m.height, bits)
}

// Equal reports whether two masks have identical shape and content.
func (m *BinaryMask) Equal(other *BinaryMask) bool {
	if m.width != other.width || m.height != other.height {
		return false
	}
	for i := range m.bits {
		if m.bits[i] != other.bits[i] {
			return false
		}
	}
	return true
}

// Image renders set pixels as 255 and clear pixels as 0.
func (m *BinaryMask) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.width, m.height))
	for i, b := range m.bits {
		if b {
			img.Pix[(i/m.width)*img.Stride+i%m.width] = 255
		}
	}
	return img
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
