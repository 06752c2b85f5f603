package render

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/seed-cell-size/internal/segmentation"
)

// goldenAngle spaces consecutive hues as far apart as possible.
const goldenAngle = 137.50776405003785

// Background is the colour of pixels outside every live region.
var Background = color.RGBA{0, 0, 0, 255}

// RegionColor returns the preferred display colour for a region id.
//
// The hue advances by the golden angle per id and saturation and value cycle
// over three levels, so neighbouring ids never share a colour. The mapping
// depends only on id but is not injective once quantised to 8 bits; Palette
// resolves the rare collisions.
func RegionColor(id int) color.RGBA {
	return hsv(math.Mod(float64(id)*goldenAngle, 360), saturation(id), value(id))
}

func saturation(id int) float64 { return []float64{0.85, 0.6, 0.95}[id%3] }
func value(id int) float64      { return []float64{0.95, 0.85, 0.7}[(id/3)%3] }

func hsv(h, s, v float64) color.RGBA {
	r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
	return color.RGBA{r, g, b, 255}
}

// Palette assigns every id a distinct colour, none equal to Background.
//
// Ids are visited in ascending order. Each takes its RegionColor unless a
// smaller id already holds it, in which case the hue is stepped one degree at
// a time until a free colour turns up. Past a full turn the packed RGB value
// is incremented instead, so any number of ids below 2^24 fits.
func Palette(ids []int) map[int]color.RGBA {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	out := make(map[int]color.RGBA, len(sorted))
	used := make(map[color.RGBA]bool, len(sorted)+1)
	used[Background] = true
	for _, id := range sorted {
		if _, ok := out[id]; ok {
			continue
		}
		c := RegionColor(id)
		hue := math.Mod(float64(id)*goldenAngle, 360)
		for step := 1; used[c] && step < 360; step++ {
			c = hsv(math.Mod(hue+float64(step), 360), saturation(id), value(id))
		}
		for used[c] {
			c = nextRGB(c)
		}
		used[c] = true
		out[id] = c
	}
	return out
}

func nextRGB(c color.RGBA) color.RGBA {
	v := (uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)) + 1
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
}

// UniqueColor renders every live region in its Palette colour on a black
// background.
func UniqueColor(seg segmentation.Segmentation) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, seg.Width(), seg.Height()))
	palette := Palette(seg.Identifiers())
	for row := 0; row < seg.Height(); row++ {
		for col := 0; col < seg.Width(); col++ {
			c := Background
			if id := seg.At(row, col); id != 0 {
				c = palette[id]
			}
			img.SetRGBA(col, row, c)
		}
	}
	return img
}

// FalseColor packs each live id into the 24 bits of an RGB pixel, red holding
// the most significant byte. Ids up to 2^24-1 round-trip through FalseColorID.
func FalseColor(seg segmentation.Segmentation) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, seg.Width(), seg.Height()))
	for row := 0; row < seg.Height(); row++ {
		for col := 0; col < seg.Width(); col++ {
			id := seg.At(row, col)
			img.SetRGBA(col, row, color.RGBA{uint8(id >> 16), uint8(id >> 8), uint8(id), 255})
		}
	}
	return img
}

// FalseColorID recovers the id stored in a FalseColor pixel.
func FalseColorID(c color.RGBA) int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}
