package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/logging"
)

// Summary describes one completed analysis run.
type Summary struct {
	RunID      string   `json:"run_id"`
	Input      string   `json:"input"`
	OutputDir  string   `json:"output_dir,omitempty"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Labelled   int      `json:"labelled"`
	Regions    int      `json:"regions"`
	Artefacts  []string `json:"artefacts,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	Params     Params   `json:"params"`
}

// NewSummary describes res without any files written.
func NewSummary(runID, input string, res *Result, elapsed time.Duration) *Summary {
	return &Summary{
		RunID:      runID,
		Input:      input,
		Width:      res.Input.Width(),
		Height:     res.Input.Height(),
		Labelled:   res.Labelled.Len(),
		Regions:    len(res.Regions),
		DurationMS: elapsed.Milliseconds(),
		Params:     res.Params,
	}
}

// AnalyseOptions adds run-level policy to ArtefactOptions.
type AnalyseOptions struct {
	ArtefactOptions

	// FailOnEmpty turns an empty segmentation into an error and skips writing.
	FailOnEmpty bool
}

// Analyse runs the full pipeline on one image file and writes its artefacts
// into outDir, which must already exist.
//
// The context is checked between loading, processing and writing; a single
// stage is never interrupted.
func Analyse(ctx context.Context, cache *imaging.ImageCache, input, outDir string, p Params, opts AnalyseOptions, logger *slog.Logger) (*Summary, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	runID := uuid.NewString()
	start := time.Now()

	fail := func(err error) (*Summary, error) {
		logging.LogRunError(logger, runID, time.Since(start), err)
		return nil, err
	}

	logging.LogRunStart(logger, runID, input, outDir, p.Fields())

	if info, err := os.Stat(outDir); err != nil {
		return fail(fmt.Errorf("output directory %s: %w", outDir, err))
	} else if !info.IsDir() {
		return fail(fmt.Errorf("%w: output path %s is not a directory", imaging.ErrInvalidParameter, outDir))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	res, err := RunFile(cache, input, p)
	if err != nil {
		return fail(err)
	}
	logStages(logger, runID, res)

	if opts.FailOnEmpty {
		if err := res.RequireRegions(); err != nil {
			return fail(err)
		}
	} else if res.Empty() {
		logger.Warn("no regions survived filtering", "id", runID, "input", input)
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	written, err := WriteArtefacts(outDir, res, opts.ArtefactOptions)
	if err != nil {
		return fail(&StageError{Stage: StageWrite, Params: p, Err: err})
	}

	elapsed := time.Since(start)
	summary := NewSummary(runID, input, res, elapsed)
	summary.OutputDir = outDir
	summary.Artefacts = written

	logging.LogRunComplete(logger, runID, elapsed, summary.Regions)
	return summary, nil
}

func logStages(logger *slog.Logger, runID string, res *Result) {
	logging.LogStage(logger, runID, StageThreshold, map[string]any{"foreground": res.Thresholded.Count()})
	logging.LogStage(logger, runID, StageSuppress, map[string]any{"foreground": res.Denoised.Count()})
	logging.LogStage(logger, runID, StageLabel, map[string]any{"regions": res.Labelled.Len()})
	logging.LogStage(logger, runID, StageClearBorder, map[string]any{
		"enabled": res.Params.ClearBorder,
		"regions": res.Cleared.Len(),
	})
	logging.LogStage(logger, runID, StagePrune, map[string]any{"regions": res.Pruned.Len()})
	logging.LogStage(logger, runID, StageMeasure, map[string]any{"records": len(res.Records)})
}
