package pipeline

import (
	"errors"
	"fmt"

	"github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/segmentation"
)

// Stage names reported in StageError.
const (
	StageValidate    = "validate"
	StageLoad        = "load"
	StageThreshold   = "threshold"
	StageSuppress    = "suppress"
	StageLabel       = "label"
	StageClearBorder = "clear_border"
	StagePrune       = "prune"
	StageMeasure     = "measure"
	StageWrite       = "write"
)

// ErrEmptySegmentation reports that no region survived filtering. Run does
// not return it; callers that need at least one cell ask for it through
// Result.RequireRegions.
var ErrEmptySegmentation = errors.New("no regions survived filtering")

// StageError wraps a failure with the stage that produced it and the
// parameters in force.
type StageError struct {
	Stage  string
	Params Params
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Params, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result holds the output of every stage of one run.
type Result struct {
	Params Params

	Input       *imaging.Raster
	Thresholded *imaging.BinaryMask
	Denoised    *imaging.BinaryMask

	Labelled segmentation.Segmentation
	Cleared  segmentation.Segmentation
	Pruned   segmentation.Segmentation

	Regions []segmentation.Region
	Records []segmentation.ShapeRecord
}

// Empty reports whether no region survived filtering.
func (r *Result) Empty() bool {
	return len(r.Regions) == 0
}

// RequireRegions returns a StageError wrapping ErrEmptySegmentation when the
// result is empty.
func (r *Result) RequireRegions() error {
	if r.Empty() {
		return &StageError{Stage: StageMeasure, Params: r.Params, Err: ErrEmptySegmentation}
	}
	return nil
}

// Run applies threshold, suppression, labelling, border clearing, area
// pruning and measurement to raster in that order.
//
// Every stage is a pure function of its input and p. An empty outcome is a
// normal Result with no regions; errors are always *StageError.
func Run(raster *imaging.Raster, p Params) (*Result, error) {
	fail := func(stage string, err error) (*Result, error) {
		return nil, &StageError{Stage: stage, Params: p, Err: err}
	}

	if raster == nil {
		return fail(StageValidate, fmt.Errorf("%w: nil raster", imaging.ErrMalformedInput))
	}
	if err := p.Validate(); err != nil {
		return fail(StageValidate, err)
	}

	res := &Result{Params: p, Input: raster}
	var err error

	if res.Thresholded, err = imaging.AdaptiveThreshold(raster, p.Threshold()); err != nil {
		return fail(StageThreshold, err)
	}
	if res.Denoised, err = segmentation.SuppressSmallFeatures(res.Thresholded, p.MinObjectSize, p.Connectivity); err != nil {
		return fail(StageSuppress, err)
	}
	if res.Labelled, err = segmentation.Label(res.Denoised, true, p.Connectivity); err != nil {
		return fail(StageLabel, err)
	}

	res.Cleared = res.Labelled
	if p.ClearBorder {
		res.Cleared = segmentation.ClearBorder(res.Labelled)
	}

	if res.Pruned, err = segmentation.PruneSmallRegions(res.Cleared, p.AreaThreshold); err != nil {
		return fail(StagePrune, err)
	}

	res.Regions = segmentation.Measure(res.Pruned)
	res.Records = segmentation.Records(res.Regions)
	return res, nil
}

// RunFile loads path through cache and runs the pipeline on it. Load
// failures are reported as StageLoad.
func RunFile(cache *imaging.ImageCache, path string, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, &StageError{Stage: StageValidate, Params: p, Err: err}
	}
	raster, err := imaging.LoadRaster(cache, path)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Params: p, Err: err}
	}
	return Run(raster, p)
}
