package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	seedimaging "github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/segmentation"
)

// Encoded is a PNG rendering ready to embed in a JSON response.
type Encoded struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as base64 PNG.
func EncodePNG(img image.Image) (*Encoded, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	b := img.Bounds()
	return &Encoded{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// CropRegion cuts the bounding box of one region out of img, grown by padding
// pixels on every side and clipped to the image, and optionally rescales it.
//
// Parameters:
//   - img: the image to crop, usually the original micrograph or a rendering of
//     the same size.
//   - b: the region's inclusive pixel bounds.
//   - padding: extra pixels around the box. Must not be negative.
//   - scale: resize factor applied after cropping. 1 or 0 leaves the size
//     unchanged; upscaling uses Lanczos resampling.
func CropRegion(img image.Image, b segmentation.Bounds, padding int, scale float64) (*Encoded, error) {
	if padding < 0 {
		return nil, fmt.Errorf("%w: padding %d must not be negative", seedimaging.ErrInvalidParameter, padding)
	}
	if scale < 0 {
		return nil, fmt.Errorf("%w: scale %v must not be negative", seedimaging.ErrInvalidParameter, scale)
	}
	if b.MinRow > b.MaxRow || b.MinCol > b.MaxCol {
		return nil, fmt.Errorf("%w: empty region bounds %+v", seedimaging.ErrInvalidParameter, b)
	}

	bounds := img.Bounds()
	rect := image.Rect(
		bounds.Min.X+b.MinCol-padding,
		bounds.Min.Y+b.MinRow-padding,
		bounds.Min.X+b.MaxCol+1+padding,
		bounds.Min.Y+b.MaxRow+1+padding,
	).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("%w: region bounds %+v outside image %v", seedimaging.ErrInvalidParameter, b, bounds)
	}

	cropped := imaging.Crop(img, rect)
	if scale > 0 && scale != 1 {
		w := max(1, int(float64(cropped.Bounds().Dx())*scale))
		h := max(1, int(float64(cropped.Bounds().Dy())*scale))
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}
	return EncodePNG(cropped)
}
