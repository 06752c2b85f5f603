package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/image/tiff"
)

// writeMicrograph writes an 8-bit grayscale PNG with a bright square of side
// size at (row, col) on a dark background and returns its path.
func writeMicrograph(t *testing.T, width, height, row, col, size int) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := row; y < row+size; y++ {
		for x := col; x < col+size; x++ {
			img.SetGray(x, y, color.Gray{Y: 200})
		}
	}

	path := filepath.Join(t.TempDir(), "micrograph.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// writeGray16TIFF writes a 16-bit grayscale TIFF whose sample at (x, y) is
// fill(x, y) and returns its path.
func writeGray16TIFF(t *testing.T, width, height int, fill func(x, y int) uint16) string {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: fill(x, y)})
		}
	}

	path := filepath.Join(t.TempDir(), "micrograph.tif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatalf("failed to encode tiff: %v", err)
	}
	return path
}

func TestNewImageCache(t *testing.T) {
	cache := NewImageCache()
	if cache == nil {
		t.Fatal("NewImageCache returned nil")
	}
	if cache.images == nil {
		t.Fatal("NewImageCache did not initialize images map")
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	path := writeMicrograph(t, 100, 80, 10, 10, 20)

	img1, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := img1.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x80", b.Dx(), b.Dy())
	}

	img2, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
}

func TestImageCache_Load_Errors(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "garbage.tif")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name          string
		path          string
		wantMalformed bool
	}{
		{"missing file", "/nonexistent/path/to/seed.tif", false},
		{"undecodable file", garbage, true},
	}

	cache := NewImageCache()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cache.Load(tt.path)
			if err == nil {
				t.Fatal("Load should fail")
			}
			if got := errors.Is(err, ErrMalformedInput); got != tt.wantMalformed {
				t.Errorf("errors.Is(err, ErrMalformedInput) = %v, want %v (%v)", got, tt.wantMalformed, err)
			}
			if _, err := LoadRaster(cache, tt.path); errors.Is(err, ErrMalformedInput) != tt.wantMalformed {
				t.Errorf("LoadRaster: unexpected error kind %v", err)
			}
		})
	}
}

func TestImageCache_ClearAndEvict(t *testing.T) {
	cache := NewImageCache()
	a := writeMicrograph(t, 20, 20, 0, 0, 5)
	b := writeGray16TIFF(t, 20, 20, func(x, y int) uint16 { return 0 })

	for _, p := range []string{a, b} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}

	cache.Evict(a)
	cache.Evict("/never/loaded")
	cache.mu.RLock()
	_, hasA := cache.images[a]
	_, hasB := cache.images[b]
	cache.mu.RUnlock()
	if hasA || !hasB {
		t.Errorf("after Evict: hasA=%v hasB=%v, want false true", hasA, hasB)
	}

	cache.Clear()
	cache.mu.RLock()
	count := len(cache.images)
	cache.mu.RUnlock()
	if count != 0 {
		t.Errorf("Clear did not empty cache: %d images remain", count)
	}
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	path := writeMicrograph(t, 50, 50, 5, 5, 10)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := LoadRaster(cache, path); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent LoadRaster error: %v", err)
	}
}

func TestLoadImageInfo(t *testing.T) {
	cache := NewImageCache()

	tests := []struct {
		name      string
		path      string
		format    string
		depth     string
		wantW     int
		wantH     int
		wantAlpha bool
	}{
		{"8-bit png", writeMicrograph(t, 200, 150, 0, 0, 1), "png", "8-bit", 200, 150, false},
		{"16-bit tiff", writeGray16TIFF(t, 64, 32, func(x, y int) uint16 { return uint16(x * y) }), "tiff", "16-bit", 64, 32, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := LoadImageInfo(cache, tt.path)
			if err != nil {
				t.Fatalf("LoadImageInfo failed: %v", err)
			}
			if info.Width != tt.wantW || info.Height != tt.wantH {
				t.Errorf("dimensions: got %dx%d, want %dx%d", info.Width, info.Height, tt.wantW, tt.wantH)
			}
			if info.Format != tt.format {
				t.Errorf("Format: got %s, want %s", info.Format, tt.format)
			}
			if info.ColorDepth != tt.depth {
				t.Errorf("ColorDepth: got %s, want %s", info.ColorDepth, tt.depth)
			}
			if info.HasAlpha != tt.wantAlpha {
				t.Errorf("HasAlpha: got %v, want %v", info.HasAlpha, tt.wantAlpha)
			}
			if info.FileSizeBytes <= 0 {
				t.Error("FileSizeBytes should be positive")
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path   string
		format string
	}{
		{"a.png", "png"},
		{"a.JPG", "jpeg"},
		{"a.jpeg", "jpeg"},
		{"a.gif", "gif"},
		{"seed_01.tif", "tiff"},
		{"seed_01.TIFF", "tiff"},
		{"a.xyz", "unknown"},
		{"noext", "unknown"},
	}

	for _, tt := range tests {
		if got := formatFromPath(tt.path); got != tt.format {
			t.Errorf("formatFromPath(%q): got %s, want %s", tt.path, got, tt.format)
		}
	}
}

func TestGetDimensions(t *testing.T) {
	cache := NewImageCache()
	path := writeMicrograph(t, 300, 200, 0, 0, 1)

	dims, err := GetDimensions(cache, path)
	if err != nil {
		t.Fatalf("GetDimensions failed: %v", err)
	}
	if dims.Width != 300 || dims.Height != 200 {
		t.Errorf("got %dx%d, want 300x200", dims.Width, dims.Height)
	}

	if _, err := GetDimensions(cache, "/nonexistent/image.png"); err == nil {
		t.Error("GetDimensions should fail for non-existent file")
	}
}

func TestLoadRaster_Gray8(t *testing.T) {
	cache := NewImageCache()
	path := writeMicrograph(t, 40, 30, 5, 10, 8)

	r, err := LoadRaster(cache, path)
	if err != nil {
		t.Fatalf("LoadRaster failed: %v", err)
	}
	if r.Width() != 40 || r.Height() != 30 || r.Depth() != 8 {
		t.Fatalf("raster: got %dx%d depth %d, want 40x30 depth 8", r.Width(), r.Height(), r.Depth())
	}
	if r.At(5, 10) != 200 || r.At(0, 0) != 0 {
		t.Errorf("samples: got %v and %v, want 200 and 0", r.At(5, 10), r.At(0, 0))
	}
}

func TestLoadRaster_Gray16(t *testing.T) {
	cache := NewImageCache()
	path := writeGray16TIFF(t, 16, 8, func(x, y int) uint16 { return uint16(1000*y + x) })

	r, err := LoadRaster(cache, path)
	if err != nil {
		t.Fatalf("LoadRaster failed: %v", err)
	}
	if r.Depth() != 16 {
		t.Errorf("Depth: got %d, want 16", r.Depth())
	}
	if got := r.At(7, 15); got != 7015 {
		t.Errorf("At(7,15): got %v, want 7015", got)
	}
	if got := r.Max(); got != 7015 {
		t.Errorf("Max: got %v, want 7015", got)
	}
}

func TestLoadRaster_Missing(t *testing.T) {
	_, err := LoadRaster(NewImageCache(), "/nonexistent/seed.tif")
	if err == nil {
		t.Fatal("LoadRaster should fail for a missing file")
	}
	if errors.Is(err, ErrMalformedInput) {
		t.Error("a missing file is an I/O error, not malformed input")
	}
}

func TestDecodeRaster(t *testing.T) {
	data, err := os.ReadFile(writeGray16TIFF(t, 16, 8, func(x, y int) uint16 { return uint16(x * y) }))
	if err != nil {
		t.Fatalf("failed to read tiff: %v", err)
	}

	r, err := DecodeRaster(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeRaster failed: %v", err)
	}
	if r.Width() != 16 || r.Height() != 8 || r.Depth() != 16 || r.At(7, 15) != 105 {
		t.Errorf("decoded raster: %dx%d depth %d At(7,15)=%v", r.Width(), r.Height(), r.Depth(), r.At(7, 15))
	}

	if _, err := DecodeRaster(bytes.NewReader([]byte("not an image"))); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}
