// Package render turns a segmentation into images for inspection.
//
// UniqueColor paints each live region in a distinct colour chosen by Palette,
// which depends only on the set of live ids. FalseColor stores the id itself
// in the pixel and is lossless for ids below 2^24. Labels stamps each region's
// id at its centroid over either the dimmed mask or a dimmed copy of the input
// micrograph.
//
// Nothing in this package mutates the segmentation it is given. Encoding to
// files is left to the caller; EncodePNG and CropRegion produce base64 PNG for
// JSON transports.
package render
