package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/pipeline"
	"github.com/ironsheep/seed-cell-size/internal/render"
	"github.com/ironsheep/seed-cell-size/internal/segmentation"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "seedcell_measure").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each seedcell_* handler:
//  1. Unmarshals arguments from JSON
//  2. Overlays the supplied pipeline parameters on the configured ones
//  3. Loads the micrograph through the cache and runs the pipeline
//  4. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Seed cell analysis
	case "seedcell_measure":
		return s.handleSeedcellMeasure(args)
	case "seedcell_analyse":
		return s.handleSeedcellAnalyse(args)
	case "seedcell_labels":
		return s.handleSeedcellLabels(args)
	case "seedcell_threshold":
		return s.handleSeedcellThreshold(args)
	case "seedcell_region":
		return s.handleSeedcellRegion(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Seed Cell Handlers ===

// paramArgs holds the optional pipeline overrides shared by the seedcell_*
// tools. A nil field keeps the configured value.
type paramArgs struct {
	BlockSize       *int     `json:"block_size"`
	ThresholdMethod *string  `json:"threshold_method"`
	ThresholdOffset *float64 `json:"threshold_offset"`
	MinObjectSize   *int     `json:"min_object_size"`
	ClearBorder     *bool    `json:"clear_border"`
	AreaThreshold   *int     `json:"area_threshold"`
	Connectivity    *int     `json:"connectivity"`
}

// apply returns base with every supplied override set. The result is not
// validated here; the pipeline rejects bad values with a validate StageError.
func (a paramArgs) apply(base pipeline.Params) pipeline.Params {
	p := base
	if a.BlockSize != nil {
		p.BlockSize = *a.BlockSize
	}
	if a.ThresholdMethod != nil {
		p.ThresholdMethod = imaging.ThresholdMethod(*a.ThresholdMethod)
	}
	if a.ThresholdOffset != nil {
		p.ThresholdOffset = *a.ThresholdOffset
	}
	if a.MinObjectSize != nil {
		p.MinObjectSize = *a.MinObjectSize
	}
	if a.ClearBorder != nil {
		p.ClearBorder = *a.ClearBorder
	}
	if a.AreaThreshold != nil {
		p.AreaThreshold = *a.AreaThreshold
	}
	if a.Connectivity != nil {
		p.Connectivity = segmentation.Connectivity(*a.Connectivity)
	}
	return p
}

// run loads path and runs the pipeline with the overrides applied.
func (s *Server) run(path string, pa paramArgs) (*pipeline.Result, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", imaging.ErrInvalidParameter)
	}
	return pipeline.RunFile(s.cache, path, pa.apply(s.cfg.Params()))
}

type seedcellMeasureArgs struct {
	paramArgs
	Path         string `json:"path"`
	RequireCells bool   `json:"require_cells"`
}

// MeasureResult is returned by seedcell_measure.
type MeasureResult struct {
	Summary *pipeline.Summary          `json:"summary"`
	Records []segmentation.ShapeRecord `json:"records"`
}

func (s *Server) handleSeedcellMeasure(args json.RawMessage) (interface{}, error) {
	var a seedcellMeasureArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.run(a.Path, a.paramArgs)
	if err != nil {
		return nil, err
	}
	if a.RequireCells {
		if err := res.RequireRegions(); err != nil {
			return nil, err
		}
	}

	summary := pipeline.NewSummary(uuid.NewString(), a.Path, res, time.Since(start))
	s.log.Info("measured", "id", summary.RunID, "input", a.Path, "regions", summary.Regions)
	return &MeasureResult{Summary: summary, Records: res.Records}, nil
}

type seedcellAnalyseArgs struct {
	paramArgs
	Path      string `json:"path"`
	OutputDir string `json:"output_dir"`
	Format    string `json:"format"`
	Debug     *bool  `json:"debug"`
}

func (s *Server) handleSeedcellAnalyse(args json.RawMessage) (interface{}, error) {
	var a seedcellAnalyseArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" || a.OutputDir == "" {
		return nil, fmt.Errorf("%w: path and output_dir are required", imaging.ErrInvalidParameter)
	}

	opts := s.cfg.AnalyseOptions()
	if a.Format != "" {
		opts.Format = a.Format
	}
	if a.Debug != nil {
		opts.Debug = *a.Debug
	}
	return pipeline.Analyse(context.Background(), s.cache, a.Path, a.OutputDir, a.apply(s.cfg.Params()), opts, s.log)
}

type seedcellLabelsArgs struct {
	paramArgs
	Path     string `json:"path"`
	Base     string `json:"base"`
	TextSize int    `json:"text_size"`
}

// LabelsResult is returned by seedcell_labels.
type LabelsResult struct {
	*render.Encoded
	Regions int `json:"regions"`
}

func (s *Server) handleSeedcellLabels(args json.RawMessage) (interface{}, error) {
	var a seedcellLabelsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	res, err := s.run(a.Path, a.paramArgs)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.AnalyseOptions().Label
	if a.TextSize != 0 {
		opts.TextSize = a.TextSize
	}

	var base *imaging.Raster
	switch a.Base {
	case "", "mask":
	case "original":
		base = res.Input
	default:
		return nil, fmt.Errorf("%w: base %q must be mask or original", imaging.ErrInvalidParameter, a.Base)
	}

	img, err := render.Labels(res.Pruned, base, opts)
	if err != nil {
		return nil, err
	}
	enc, err := render.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &LabelsResult{Encoded: enc, Regions: len(res.Regions)}, nil
}

type seedcellThresholdArgs struct {
	Path            string   `json:"path"`
	BlockSize       *int     `json:"block_size"`
	ThresholdMethod *string  `json:"threshold_method"`
	ThresholdOffset *float64 `json:"threshold_offset"`
}

// ThresholdResult is returned by seedcell_threshold.
type ThresholdResult struct {
	*render.Encoded
	Foreground int                      `json:"foreground"`
	Options    imaging.ThresholdOptions `json:"options"`
}

func (s *Server) handleSeedcellThreshold(args json.RawMessage) (interface{}, error) {
	var a seedcellThresholdArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	pa := paramArgs{BlockSize: a.BlockSize, ThresholdMethod: a.ThresholdMethod, ThresholdOffset: a.ThresholdOffset}
	opts := pa.apply(s.cfg.Params()).Threshold()

	raster, err := imaging.LoadRaster(s.cache, a.Path)
	if err != nil {
		return nil, err
	}
	mask, err := imaging.AdaptiveThreshold(raster, opts)
	if err != nil {
		return nil, err
	}
	enc, err := render.EncodePNG(mask.Image())
	if err != nil {
		return nil, err
	}
	return &ThresholdResult{Encoded: enc, Foreground: mask.Count(), Options: opts}, nil
}

type seedcellRegionArgs struct {
	paramArgs
	Path       string  `json:"path"`
	Identifier int     `json:"identifier"`
	Source     string  `json:"source"`
	Padding    *int    `json:"padding"`
	Scale      float64 `json:"scale"`
}

// RegionResult is returned by seedcell_region.
type RegionResult struct {
	*render.Encoded
	Record segmentation.ShapeRecord `json:"record"`
	Bounds segmentation.Bounds      `json:"bounds"`
}

func (s *Server) handleSeedcellRegion(args json.RawMessage) (interface{}, error) {
	var a seedcellRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	padding := 10
	if a.Padding != nil {
		padding = *a.Padding
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}

	res, err := s.run(a.Path, a.paramArgs)
	if err != nil {
		return nil, err
	}

	var region *segmentation.Region
	for i := range res.Regions {
		if res.Regions[i].Identifier == a.Identifier {
			region = &res.Regions[i]
			break
		}
	}
	if region == nil {
		return nil, fmt.Errorf("%w: no region with identifier %d (%d regions)", imaging.ErrInvalidParameter, a.Identifier, len(res.Regions))
	}

	var src image.Image
	switch a.Source {
	case "", "original":
		src = res.Input.Image()
	case "segmentation":
		src = render.UniqueColor(res.Pruned)
	default:
		return nil, fmt.Errorf("%w: source %q must be original or segmentation", imaging.ErrInvalidParameter, a.Source)
	}

	enc, err := render.CropRegion(src, region.Bounds, padding, a.Scale)
	if err != nil {
		return nil, err
	}
	return &RegionResult{Encoded: enc, Record: region.Record(), Bounds: region.Bounds}, nil
}
