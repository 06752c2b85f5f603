// Package imaging loads micrographs and turns them into binary masks.
//
// It provides the two value types the rest of the pipeline works on, Raster
// (an immutable single-channel intensity grid) and BinaryMask, along with
// the ImageCache used to decode files once and AdaptiveThreshold, the first
// stage of the seed cell pipeline.
//
// # Coordinate System
//
// Rasters and masks are indexed (row, col) with (0, 0) at the top-left corner.
// Rows increase downward and columns rightward. Conversions to image.Image keep
// the same origin with X = col and Y = row.
//
// # Bit Depth
//
// 16-bit grayscale files (the usual TIFF output of a microscope camera) keep
// their samples unchanged. Every other colour model is reduced to 8-bit
// luminance. Thresholding compares samples against a local mean, so no
// rescaling between depths is needed.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Raster and BinaryMask are
// never modified after construction and can be shared between goroutines.
//
// # Error Handling
//
// Parameter problems wrap ErrInvalidParameter and data that does not match its
// declared shape wraps ErrMalformedInput, so callers can tell a bad request
// from a bad file with errors.Is. File system errors are returned wrapped
// as-is.
package imaging
