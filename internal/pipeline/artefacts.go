package pipeline

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	seedimaging "github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/render"
	"github.com/ironsheep/seed-cell-size/internal/results"
)

// ResultsFileName is the CSV written next to the images.
const ResultsFileName = "results.csv"

// ArtefactOptions controls WriteArtefacts.
type ArtefactOptions struct {
	// Format is "png" or "tiff".
	Format string

	// Debug also writes numbered intermediates of each stage.
	Debug bool

	// Label configures the labels image.
	Label render.LabelOptions
}

// DefaultArtefactOptions writes PNG images with default labels.
func DefaultArtefactOptions() ArtefactOptions {
	return ArtefactOptions{Format: "png", Label: render.DefaultLabelOptions()}
}

func (o ArtefactOptions) ext() (string, error) {
	switch o.Format {
	case "png":
		return ".png", nil
	case "tiff":
		return ".tif", nil
	}
	return "", fmt.Errorf("%w: unsupported artefact format %q", seedimaging.ErrInvalidParameter, o.Format)
}

// WriteArtefacts writes the images and results.csv for res into dir and
// returns the paths written, in order.
//
// The main artefacts are original, false_color, segmentation (unique colour)
// and labels. In debug mode the intermediates 001_threshold, 002_denoised,
// 003_labelled and 004_cleared are written first. An empty result still
// produces every file; results.csv then holds the header only.
func WriteArtefacts(dir string, res *Result, opts ArtefactOptions) ([]string, error) {
	ext, err := opts.ext()
	if err != nil {
		return nil, err
	}

	labels, err := render.Labels(res.Pruned, nil, opts.Label)
	if err != nil {
		return nil, fmt.Errorf("failed to render labels: %w", err)
	}

	type artefact struct {
		name string
		img  image.Image
	}
	var images []artefact
	if opts.Debug {
		images = append(images,
			artefact{"001_threshold", res.Thresholded.Image()},
			artefact{"002_denoised", res.Denoised.Image()},
			artefact{"003_labelled", render.UniqueColor(res.Labelled)},
			artefact{"004_cleared", render.UniqueColor(res.Cleared)},
		)
	}
	images = append(images,
		artefact{"original", res.Input.Image()},
		artefact{"false_color", render.FalseColor(res.Pruned)},
		artefact{"segmentation", render.UniqueColor(res.Pruned)},
		artefact{"labels", labels},
	)

	written := make([]string, 0, len(images)+1)
	for _, a := range images {
		path := filepath.Join(dir, a.name+ext)
		if err := imaging.Save(a.img, path); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", path, err)
		}
		written = append(written, path)
	}

	csvPath := filepath.Join(dir, ResultsFileName)
	if err := writeResults(csvPath, res); err != nil {
		return written, err
	}
	return append(written, csvPath), nil
}

func writeResults(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := results.Write(f, res.Records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
