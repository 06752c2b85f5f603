// Package pipeline composes the seed cell stages into one run.
//
// Run is plain function composition over immutable values:
//
//	raster -> AdaptiveThreshold -> SuppressSmallFeatures -> Label
//	       -> ClearBorder -> PruneSmallRegions -> Measure -> Records
//
// Every intermediate is kept in Result so callers can render or inspect any
// stage. Failures are returned as *StageError naming the stage and the
// parameters in force; the underlying sentinel (imaging.ErrInvalidParameter,
// imaging.ErrMalformedInput) is reachable with errors.Is. A run where nothing
// survives filtering is not an error: Result.Empty reports it, and
// Result.RequireRegions converts it to ErrEmptySegmentation for callers that
// want one.
//
// WriteArtefacts and Analyse add file output on top of Run. Nothing in Run
// performs I/O.
package pipeline
