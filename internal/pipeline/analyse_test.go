package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/logging"
	"github.com/ironsheep/seed-cell-size/internal/results"
)

// writeInput encodes an 8-bit grayscale PNG with the given squares and
// returns its path.
func writeInput(t *testing.T, width, height int, squares ...square) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for _, s := range squares {
		for y := s.row; y < s.row+s.size; y++ {
			for x := s.col; x < s.col+s.size; x++ {
				img.SetGray(x, y, color.Gray{Y: 200})
			}
		}
	}
	path := filepath.Join(t.TempDir(), "seed.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create input: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode input: %v", err)
	}
	return path
}

func readResults(t *testing.T, dir string) (string, int) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, ResultsFileName))
	if err != nil {
		t.Fatalf("failed to read results: %v", err)
	}
	recs, err := results.Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("results.csv does not parse: %v", err)
	}
	return string(data), len(recs)
}

func TestWriteArtefacts(t *testing.T) {
	res := mustRun(t, createRaster(t, 200, 200, square{75, 75, 50}), DefaultParams())

	tests := []struct {
		name  string
		opts  ArtefactOptions
		files []string
	}{
		{
			"png",
			DefaultArtefactOptions(),
			[]string{"original.png", "false_color.png", "segmentation.png", "labels.png", "results.csv"},
		},
		{
			"tiff debug",
			ArtefactOptions{Format: "tiff", Debug: true, Label: DefaultArtefactOptions().Label},
			[]string{
				"001_threshold.tif", "002_denoised.tif", "003_labelled.tif", "004_cleared.tif",
				"original.tif", "false_color.tif", "segmentation.tif", "labels.tif", "results.csv",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			written, err := WriteArtefacts(dir, res, tt.opts)
			if err != nil {
				t.Fatalf("WriteArtefacts failed: %v", err)
			}
			if len(written) != len(tt.files) {
				t.Fatalf("written: got %v, want %v", written, tt.files)
			}
			for i, name := range tt.files {
				if filepath.Base(written[i]) != name {
					t.Errorf("written[%d]: got %s, want %s", i, filepath.Base(written[i]), name)
				}
				if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
					t.Errorf("%s not written: %v", name, err)
				}
			}

			if _, n := readResults(t, dir); n != 1 {
				t.Errorf("results.csv records: got %d, want 1", n)
			}
		})
	}
}

func TestWriteArtefacts_OriginalRoundTrip(t *testing.T) {
	raster := createRaster(t, 120, 100, square{30, 30, 40})
	res := mustRun(t, raster, DefaultParams())
	dir := t.TempDir()
	if _, err := WriteArtefacts(dir, res, DefaultArtefactOptions()); err != nil {
		t.Fatalf("WriteArtefacts failed: %v", err)
	}

	back, err := imaging.LoadRaster(imaging.NewImageCache(), filepath.Join(dir, "original.png"))
	if err != nil {
		t.Fatalf("LoadRaster failed: %v", err)
	}
	if back.Width() != 120 || back.Height() != 100 || back.At(40, 40) != 200 || back.At(0, 0) != 0 {
		t.Error("original.png does not reproduce the input raster")
	}
}

func TestWriteArtefacts_Empty(t *testing.T) {
	res := mustRun(t, createRaster(t, 100, 100), DefaultParams())
	dir := t.TempDir()

	written, err := WriteArtefacts(dir, res, DefaultArtefactOptions())
	if err != nil {
		t.Fatalf("WriteArtefacts failed on empty result: %v", err)
	}
	if len(written) != 5 {
		t.Errorf("written: got %d files, want 5", len(written))
	}

	data, n := readResults(t, dir)
	if n != 0 {
		t.Errorf("records: got %d, want 0", n)
	}
	if strings.TrimSpace(data) != strings.Join(results.Header(), ",") {
		t.Errorf("empty results.csv: got %q, want header only", data)
	}
}

func TestWriteArtefacts_BadFormat(t *testing.T) {
	res := mustRun(t, createRaster(t, 100, 100), DefaultParams())
	opts := DefaultArtefactOptions()
	opts.Format = "bmp"
	if _, err := WriteArtefacts(t.TempDir(), res, opts); !errors.Is(err, imaging.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestAnalyse(t *testing.T) {
	input := writeInput(t, 200, 200, square{75, 75, 50})
	dir := t.TempDir()

	var logs bytes.Buffer
	logger := logging.New(&logs, "debug", "traditional")
	opts := AnalyseOptions{ArtefactOptions: DefaultArtefactOptions()}

	summary, err := Analyse(context.Background(), imaging.NewImageCache(), input, dir, DefaultParams(), opts, logger)
	if err != nil {
		t.Fatalf("Analyse failed: %v", err)
	}

	if summary.RunID == "" {
		t.Error("RunID is empty")
	}
	if summary.Regions != 1 || summary.Labelled != 1 {
		t.Errorf("regions: got %d of %d labelled, want 1 of 1", summary.Regions, summary.Labelled)
	}
	if summary.Width != 200 || summary.Height != 200 {
		t.Errorf("size: got %dx%d, want 200x200", summary.Width, summary.Height)
	}
	if len(summary.Artefacts) != 5 {
		t.Errorf("artefacts: got %v", summary.Artefacts)
	}

	out := logs.String()
	for _, want := range []string{"run started", "pipeline stage", "stage=clear_border", "run completed successfully", "id=" + summary.RunID} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestAnalyse_Failures(t *testing.T) {
	empty := writeInput(t, 100, 100)
	notDir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notDir, nil, 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		input     string
		outDir    string
		opts      AnalyseOptions
		wantErr   error
		wantStage string
	}{
		{"missing output dir", context.Background(), empty, "/nonexistent/out", AnalyseOptions{ArtefactOptions: DefaultArtefactOptions()}, os.ErrNotExist, ""},
		{"output is a file", context.Background(), empty, notDir, AnalyseOptions{ArtefactOptions: DefaultArtefactOptions()}, imaging.ErrInvalidParameter, ""},
		{"missing input", context.Background(), "/nonexistent/seed.png", t.TempDir(), AnalyseOptions{ArtefactOptions: DefaultArtefactOptions()}, nil, StageLoad},
		{"cancelled", cancelled, empty, t.TempDir(), AnalyseOptions{ArtefactOptions: DefaultArtefactOptions()}, context.Canceled, ""},
		{"fail on empty", context.Background(), empty, t.TempDir(), AnalyseOptions{ArtefactOptions: DefaultArtefactOptions(), FailOnEmpty: true}, ErrEmptySegmentation, StageMeasure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := Analyse(tt.ctx, imaging.NewImageCache(), tt.input, tt.outDir, DefaultParams(), tt.opts, nil)
			if err == nil {
				t.Fatalf("expected error, got summary %+v", summary)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v in chain, got %v", tt.wantErr, err)
			}
			if tt.wantStage != "" {
				var stageErr *StageError
				if !errors.As(err, &stageErr) || stageErr.Stage != tt.wantStage {
					t.Errorf("expected %s StageError, got %v", tt.wantStage, err)
				}
			}
		})
	}
}

func TestAnalyse_FailOnEmptyWritesNothing(t *testing.T) {
	dir := t.TempDir()
	opts := AnalyseOptions{ArtefactOptions: DefaultArtefactOptions(), FailOnEmpty: true}
	_, err := Analyse(context.Background(), imaging.NewImageCache(), writeInput(t, 100, 100), dir, DefaultParams(), opts, nil)
	if !errors.Is(err, ErrEmptySegmentation) {
		t.Fatalf("expected ErrEmptySegmentation, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no artefacts, found %d files", len(entries))
	}
}
