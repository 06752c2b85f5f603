package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	seedimaging "github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/segmentation"
)

// MaskGrey is the intensity of foreground pixels in the label overlay when no
// base raster is supplied.
const MaskGrey = 100

// DefaultTextSize is the label glyph height in pixels.
const DefaultTextSize = 30

// LabelOptions configures Labels.
type LabelOptions struct {
	// TextSize is the rendered height of the id text in pixels. Must be positive.
	TextSize int

	// Color is the id text colour. Nil selects yellow.
	Color color.Color

	// Dim darkens a supplied base raster, in [0, 1). Ignored without a base.
	Dim float64
}

// DefaultLabelOptions returns yellow 30 pixel text over a half-dimmed base.
func DefaultLabelOptions() LabelOptions {
	return LabelOptions{TextSize: DefaultTextSize, Color: color.RGBA{255, 255, 0, 255}, Dim: 0.5}
}

// Labels renders the id of every live region at its centroid, truncated to
// whole pixels.
//
// Without a base raster the background is the segmentation mask drawn in
// MaskGrey. With one, the raster is stretched to 8 bits and darkened by
// opts.Dim so the text stays legible. Text is drawn with the 7x13 bitmap face
// and scaled with nearest-neighbour resampling to opts.TextSize.
func Labels(seg segmentation.Segmentation, base *seedimaging.Raster, opts LabelOptions) (*image.NRGBA, error) {
	if opts.TextSize <= 0 {
		return nil, fmt.Errorf("%w: label text size %d must be positive", seedimaging.ErrInvalidParameter, opts.TextSize)
	}
	if opts.Dim < 0 || opts.Dim >= 1 {
		return nil, fmt.Errorf("%w: dim factor %v outside [0, 1)", seedimaging.ErrInvalidParameter, opts.Dim)
	}
	if opts.Color == nil {
		opts.Color = color.RGBA{255, 255, 0, 255}
	}

	var canvas *image.NRGBA
	if base != nil {
		if base.Width() != seg.Width() || base.Height() != seg.Height() {
			return nil, fmt.Errorf("%w: base raster %dx%d does not match segmentation %dx%d",
				seedimaging.ErrMalformedInput, base.Width(), base.Height(), seg.Width(), seg.Height())
		}
		canvas = imaging.Clone(adjust.Brightness(stretch(base), -opts.Dim))
	} else {
		canvas = imaging.Clone(maskBase(seg))
	}

	for _, r := range segmentation.Measure(seg) {
		// the pixel containing the centroid
		centre := image.Pt(int(r.CentroidCol), int(r.CentroidRow))
		stampText(canvas, strconv.Itoa(r.Identifier), centre, opts.TextSize, opts.Color)
	}
	return canvas, nil
}

// maskBase draws live regions in MaskGrey on black.
func maskBase(seg segmentation.Segmentation) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, seg.Width(), seg.Height()))
	for row := 0; row < seg.Height(); row++ {
		for col := 0; col < seg.Width(); col++ {
			if seg.At(row, col) != 0 {
				img.Pix[row*img.Stride+col] = MaskGrey
			}
		}
	}
	return img
}

// stretch maps the raster linearly onto 0..255 using its maximum.
func stretch(r *seedimaging.Raster) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, r.Width(), r.Height()))
	peak := r.Max()
	if peak <= 0 {
		return img
	}
	scale := 255 / peak
	for row := 0; row < r.Height(); row++ {
		for col := 0; col < r.Width(); col++ {
			v := math.Round(r.At(row, col) * scale)
			img.Pix[row*img.Stride+col] = uint8(math.Max(0, math.Min(255, v)))
		}
	}
	return img
}

// stampText draws text of the given pixel height centred on centre.
// Glyphs falling outside dst are clipped.
func stampText(dst *image.NRGBA, text string, centre image.Point, size int, c color.Color) {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	w := font.MeasureString(face, text).Ceil()
	h := metrics.Height.Ceil()

	glyphs := image.NewNRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, metrics.Ascent.Ceil()),
	}
	d.DrawString(text)

	sw := max(1, int(math.Round(float64(w*size)/float64(h))))
	scaled := imaging.Resize(glyphs, sw, size, imaging.NearestNeighbor)

	origin := centre.Sub(image.Pt(sw/2, size/2))
	draw.Draw(dst, scaled.Bounds().Add(origin), scaled, image.Point{}, draw.Over)
}
