package pipeline

import (
	"fmt"

	"github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/segmentation"
)

// DefaultMinObjectSize is the speck and hole size removed by the suppressor.
const DefaultMinObjectSize = 50

// Params carries every tunable value of the pipeline. Stages read nothing
// else; there are no defaults hidden inside them.
type Params struct {
	// BlockSize is the adaptive threshold neighbourhood. Odd and positive.
	BlockSize int `json:"block_size" yaml:"blockSize"`

	// ThresholdMethod is "gaussian" or "mean".
	ThresholdMethod imaging.ThresholdMethod `json:"threshold_method" yaml:"thresholdMethod"`

	// ThresholdOffset is subtracted from the local mean.
	ThresholdOffset float64 `json:"threshold_offset" yaml:"thresholdOffset"`

	// MinObjectSize removes foreground specks and fills background holes
	// smaller than this many pixels. Zero disables suppression.
	MinObjectSize int `json:"min_object_size" yaml:"minObjectSize"`

	// ClearBorder drops regions touching the raster edge.
	ClearBorder bool `json:"clear_border" yaml:"clearBorder"`

	// AreaThreshold drops regions with fewer pixels. Zero keeps everything.
	AreaThreshold int `json:"area_threshold" yaml:"areaThreshold"`

	// Connectivity is 4 or 8 and applies to every connected-component step.
	Connectivity segmentation.Connectivity `json:"connectivity" yaml:"connectivity"`
}

// DefaultParams returns the parameters of the reference seed cell analysis.
func DefaultParams() Params {
	return Params{
		BlockSize:       imaging.DefaultBlockSize,
		ThresholdMethod: imaging.ThresholdGaussian,
		ThresholdOffset: 0,
		MinObjectSize:   DefaultMinObjectSize,
		ClearBorder:     true,
		AreaThreshold:   segmentation.DefaultAreaThreshold,
		Connectivity:    segmentation.Eight,
	}
}

// Validate checks everything that can be checked without a raster. The block
// size is compared against the raster dimensions by the threshold stage.
func (p Params) Validate() error {
	if p.BlockSize <= 0 || p.BlockSize%2 == 0 {
		return fmt.Errorf("%w: block size %d must be odd and positive", imaging.ErrInvalidParameter, p.BlockSize)
	}
	switch p.ThresholdMethod {
	case imaging.ThresholdGaussian, imaging.ThresholdMean:
	default:
		return fmt.Errorf("%w: unknown threshold method %q", imaging.ErrInvalidParameter, p.ThresholdMethod)
	}
	if p.MinObjectSize < 0 {
		return fmt.Errorf("%w: min object size %d must not be negative", imaging.ErrInvalidParameter, p.MinObjectSize)
	}
	if p.AreaThreshold < 0 {
		return fmt.Errorf("%w: area threshold %d must not be negative", imaging.ErrInvalidParameter, p.AreaThreshold)
	}
	return p.Connectivity.Validate()
}

// Threshold returns the options for the threshold stage.
func (p Params) Threshold() imaging.ThresholdOptions {
	return imaging.ThresholdOptions{
		BlockSize: p.BlockSize,
		Method:    p.ThresholdMethod,
		Offset:    p.ThresholdOffset,
	}
}

// Fields returns the parameters as log attributes.
func (p Params) Fields() map[string]any {
	return map[string]any{
		"block_size":       p.BlockSize,
		"threshold_method": string(p.ThresholdMethod),
		"threshold_offset": p.ThresholdOffset,
		"min_object_size":  p.MinObjectSize,
		"clear_border":     p.ClearBorder,
		"area_threshold":   p.AreaThreshold,
		"connectivity":     int(p.Connectivity),
	}
}

func (p Params) String() string {
	return fmt.Sprintf("block_size=%d method=%s offset=%g min_object_size=%d clear_border=%t area_threshold=%d connectivity=%d",
		p.BlockSize, p.ThresholdMethod, p.ThresholdOffset, p.MinObjectSize, p.ClearBorder, p.AreaThreshold, p.Connectivity)
}
