// Package segmentation turns a binary foreground mask into measured cell regions.
//
// The stages are plain functions over immutable values and are meant to be
// composed in this order:
//
//  1. SuppressSmallFeatures: drop foreground specks and fill small holes
//  2. Label: flood-fill connected components into a Segmentation
//  3. ClearBorder: drop regions touching the raster edge
//  4. PruneSmallRegions: drop regions below an area threshold
//  5. Measure: per-region shape statistics in a single grid pass
//
// # Segmentation Model
//
// A Segmentation is an id grid plus a live identifier set. Id 0 is
// background. The grid is never written after Label returns; ClearBorder and
// PruneSmallRegions return new values with a smaller identifier set that
// share the same grid. Because removing one region never changes another
// region's pixels, the two filters commute.
//
// # Connectivity
//
// Connectivity is chosen once per pipeline run (Four or Eight) and passed to
// both SuppressSmallFeatures and Label.
//
// # Shape Statistics
//
// Measure accumulates count, Σrow, Σcol, Σrow², Σcol² and Σrow·col per id.
// Axis lengths are 4·sqrt(λ) for the eigenvalues λ of the covariance matrix,
// which matches an ellipse with the same second central moments.
package segmentation
