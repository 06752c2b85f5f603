package imaging

import (
	"fmt"
	"math"
)

// ThresholdMethod selects how the local threshold is computed.
type ThresholdMethod string

const (
	// ThresholdGaussian weights the neighbourhood with a Gaussian of
	// sigma = (blockSize-1)/6, truncated at four sigma.
	ThresholdGaussian ThresholdMethod = "gaussian"

	// ThresholdMean uses the unweighted mean of the blockSize × blockSize block.
	ThresholdMean ThresholdMethod = "mean"
)

// DefaultBlockSize is the neighbourhood edge length used by the seed cell pipeline.
const DefaultBlockSize = 91

// ThresholdOptions configures AdaptiveThreshold.
type ThresholdOptions struct {
	// BlockSize is the odd, positive neighbourhood edge length in pixels.
	BlockSize int `json:"block_size" yaml:"blockSize"`

	// Method is ThresholdGaussian or ThresholdMean.
	Method ThresholdMethod `json:"method" yaml:"method"`

	// Offset is subtracted from the local mean before comparison.
	Offset float64 `json:"offset" yaml:"offset"`
}

// Validate checks the options against a raster of the given size.
func (o ThresholdOptions) Validate(width, height int) error {
	if o.BlockSize <= 0 || o.BlockSize%2 == 0 {
		return fmt.Errorf("%w: block size %d must be odd and positive", ErrInvalidParameter, o.BlockSize)
	}
	if o.BlockSize > width || o.BlockSize > height {
		return fmt.Errorf("%w: block size %d exceeds raster %dx%d", ErrInvalidParameter, o.BlockSize, width, height)
	}
	switch o.Method {
	case ThresholdGaussian, ThresholdMean:
	default:
		return fmt.Errorf("%w: unknown threshold method %q", ErrInvalidParameter, o.Method)
	}
	return nil
}

// AdaptiveThreshold classifies each pixel as foreground when it is brighter
// than the weighted mean of its neighbourhood minus Offset.
//
// The neighbourhood filter is separable and applied as two 1-D passes over
// float64 samples. Samples beyond the raster edge are taken by half-sample
// reflection (d c b a | a b c d | d c b a), so results are reproducible pixel
// for pixel for a given block size.
func AdaptiveThreshold(r *Raster, opts ThresholdOptions) (*BinaryMask, error) {
	if err := opts.Validate(r.width, r.height); err != nil {
		return nil, err
	}

	var kernel []float64
	if opts.Method == ThresholdMean {
		kernel = meanKernel(opts.BlockSize)
	} else {
		kernel = gaussianKernel(float64(opts.BlockSize-1) / 6.0)
	}

	local := separableFilter(r.pix, r.width, r.height, kernel)

	bits := make([]bool, len(r.pix))
	for i, v := range r.pix {
		bits[i] = v > local[i]-opts.Offset
	}
	return MaskFromBits(r.width, r.height, bits), nil
}

// meanKernel returns a normalised box kernel of the given odd size.
func meanKernel(size int) []float64 {
	k := make([]float64, size)
	for i := range k {
		k[i] = 1.0 / float64(size)
	}
	return k
}

// gaussianKernel returns a normalised 1-D Gaussian with radius round(4*sigma).
func gaussianKernel(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}
	radius := int(4.0*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		k[i+radius] = w
		sum += w
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// separableFilter convolves rows then columns with a symmetric odd kernel.
func separableFilter(src []float64, width, height int, kernel []float64) []float64 {
	radius := len(kernel) / 2

	rows := make([]float64, len(src))
	for y := 0; y < height; y++ {
		base := y * width
		for x := 0; x < width; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += src[base+reflectIndex(x+k, width)] * kernel[k+radius]
			}
			rows[base+x] = sum
		}
	}

	out := make([]float64, len(src))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += rows[reflectIndex(y+k, height)*width+x] * kernel[k+radius]
			}
			out[y*width+x] = sum
		}
	}
	return out
}

// reflectIndex maps an out-of-range index back into [0, n) by half-sample
// symmetric reflection. Indices further than n away wrap with period 2n.
func reflectIndex(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
