package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/segmentation"
)

type square struct {
	row, col, size int
}

// createRaster returns an 8-bit width×height raster with the given squares
// at intensity 200 on a zero background.
func createRaster(t *testing.T, width, height int, squares ...square) *imaging.Raster {
	t.Helper()
	samples := make([]float64, width*height)
	for _, s := range squares {
		for r := s.row; r < s.row+s.size; r++ {
			for c := s.col; c < s.col+s.size; c++ {
				samples[r*width+c] = 200
			}
		}
	}
	raster, err := imaging.NewRaster(width, height, samples, 8)
	if err != nil {
		t.Fatalf("NewRaster failed: %v", err)
	}
	return raster
}

func mustRun(t *testing.T, raster *imaging.Raster, p Params) *Result {
	t.Helper()
	res, err := Run(raster, p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if p.BlockSize != 91 {
		t.Errorf("BlockSize: got %d, want 91", p.BlockSize)
	}
	if p.AreaThreshold != 1000 {
		t.Errorf("AreaThreshold: got %d, want 1000", p.AreaThreshold)
	}
	if p.ThresholdMethod != imaging.ThresholdGaussian || !p.ClearBorder || p.Connectivity != segmentation.Eight {
		t.Errorf("unexpected defaults: %s", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"even block size", func(p *Params) { p.BlockSize = 90 }},
		{"zero block size", func(p *Params) { p.BlockSize = 0 }},
		{"negative block size", func(p *Params) { p.BlockSize = -91 }},
		{"unknown method", func(p *Params) { p.ThresholdMethod = "otsu" }},
		{"negative min object size", func(p *Params) { p.MinObjectSize = -1 }},
		{"negative area threshold", func(p *Params) { p.AreaThreshold = -1 }},
		{"bad connectivity", func(p *Params) { p.Connectivity = 6 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(&p)
			if err := p.Validate(); !errors.Is(err, imaging.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestRun_InvalidParamsFailFast(t *testing.T) {
	p := DefaultParams()
	p.BlockSize = 4
	_, err := Run(createRaster(t, 100, 100), p)

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %T: %v", err, err)
	}
	if stageErr.Stage != StageValidate {
		t.Errorf("Stage: got %s, want %s", stageErr.Stage, StageValidate)
	}
	if stageErr.Params.BlockSize != 4 {
		t.Errorf("StageError should carry the parameters, got %s", stageErr.Params)
	}
	if !errors.Is(err, imaging.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter in chain, got %v", err)
	}
}

func TestRun_BlockLargerThanRaster(t *testing.T) {
	_, err := Run(createRaster(t, 60, 60), DefaultParams())

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageThreshold {
		t.Fatalf("expected threshold StageError, got %v", err)
	}
	if !errors.Is(err, imaging.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter in chain, got %v", err)
	}
}

func TestRun_NilRaster(t *testing.T) {
	_, err := Run(nil, DefaultParams())
	if !errors.Is(err, imaging.ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestRun_AllZero(t *testing.T) {
	res := mustRun(t, createRaster(t, 100, 100), DefaultParams())

	if res.Labelled.Len() != 0 {
		t.Errorf("labelled regions: got %d, want 0", res.Labelled.Len())
	}
	if !res.Empty() {
		t.Error("Empty: got false, want true")
	}
	if res.Records == nil || len(res.Records) != 0 {
		t.Errorf("Records: got %v, want empty non-nil slice", res.Records)
	}

	err := res.RequireRegions()
	if !errors.Is(err, ErrEmptySegmentation) {
		t.Errorf("RequireRegions: expected ErrEmptySegmentation, got %v", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageMeasure {
		t.Errorf("RequireRegions: expected measure StageError, got %v", err)
	}
}

func TestRun_CentredSquare(t *testing.T) {
	res := mustRun(t, createRaster(t, 200, 200, square{75, 75, 50}), DefaultParams())

	if err := res.RequireRegions(); err != nil {
		t.Fatalf("RequireRegions: %v", err)
	}
	if len(res.Regions) != 1 {
		t.Fatalf("regions: got %d, want 1", len(res.Regions))
	}
	r := res.Regions[0]
	if r.Area != 2500 {
		t.Errorf("Area: got %d, want 2500", r.Area)
	}
	if math.Abs(r.CentroidRow-99.5) > 1e-9 || math.Abs(r.CentroidCol-99.5) > 1e-9 {
		t.Errorf("Centroid: got (%.3f, %.3f), want (99.5, 99.5)", r.CentroidRow, r.CentroidCol)
	}
	if math.Abs(r.MajorAxisLength-r.MinorAxisLength) > 1e-6 {
		t.Errorf("axes should match for a square: major %.4f minor %.4f", r.MajorAxisLength, r.MinorAxisLength)
	}

	rec := res.Records[0]
	if rec.Identifier != r.Identifier || rec.Area != 2500 || rec.Width != rec.Length {
		t.Errorf("record does not match region: %+v", rec)
	}
}

func TestRun_BorderRegion(t *testing.T) {
	raster := createRaster(t, 200, 200, square{0, 50, 80})

	res := mustRun(t, raster, DefaultParams())
	if res.Labelled.Len() != 1 {
		t.Fatalf("labelled regions: got %d, want 1", res.Labelled.Len())
	}
	if !res.Empty() {
		t.Errorf("region on row 0 survived border clearing: %v", res.Pruned.Identifiers())
	}

	p := DefaultParams()
	p.ClearBorder = false
	res = mustRun(t, raster, p)
	if len(res.Regions) != 1 || res.Regions[0].Area != 6400 {
		t.Errorf("with border clearing disabled: got %d regions", len(res.Regions))
	}
}

func TestRun_AreaPrune(t *testing.T) {
	raster := createRaster(t, 300, 200, square{60, 40, 50}, square{80, 200, 20})

	tests := []struct {
		threshold int
		want      []int
	}{
		{0, []int{2500, 400}},
		{400, []int{2500, 400}},
		{401, []int{2500}},
		{1000, []int{2500}},
		{2501, nil},
	}

	for _, tt := range tests {
		p := DefaultParams()
		p.AreaThreshold = tt.threshold
		res := mustRun(t, raster, p)

		var got []int
		for _, r := range res.Regions {
			got = append(got, r.Area)
		}
		if len(got) != len(tt.want) {
			t.Errorf("threshold %d: areas %v, want %v", tt.threshold, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("threshold %d: areas %v, want %v", tt.threshold, got, tt.want)
				break
			}
		}
	}
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	raster := createRaster(t, 120, 120, square{30, 30, 40})

	res := mustRun(t, raster, DefaultParams())
	if res.Input != raster {
		t.Error("Result.Input should be the supplied raster")
	}
	if raster.At(50, 50) != 200 || raster.At(0, 0) != 0 {
		t.Error("Run modified the input raster")
	}
	if res.Thresholded.Count() != 1600 {
		t.Errorf("thresholded foreground: got %d, want 1600", res.Thresholded.Count())
	}
	if !res.Denoised.Equal(res.Thresholded) {
		t.Error("suppression should not alter a mask without specks or holes")
	}
}
