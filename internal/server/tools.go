package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the micrograph (TIFF, PNG, JPEG or GIF)",
	}
}

// pipelineProperties describes the optional overrides accepted by every
// seedcell_* tool. Omitted values come from the server configuration.
func pipelineProperties() map[string]interface{} {
	return map[string]interface{}{
		"block_size": map[string]interface{}{
			"type":        "integer",
			"description": "Adaptive threshold neighbourhood in pixels; odd and positive. Default 91",
		},
		"threshold_method": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"gaussian", "mean"},
			"description": "Local threshold weighting. Default gaussian",
		},
		"threshold_offset": map[string]interface{}{
			"type":        "number",
			"description": "Value subtracted from the local mean before comparison. Default 0",
		},
		"min_object_size": map[string]interface{}{
			"type":        "integer",
			"description": "Specks and holes smaller than this many pixels are removed. Default 50",
		},
		"clear_border": map[string]interface{}{
			"type":        "boolean",
			"description": "Drop cells touching the image edge. Default true",
		},
		"area_threshold": map[string]interface{}{
			"type":        "integer",
			"description": "Drop cells with fewer pixels than this. Default 1000",
		},
		"connectivity": map[string]interface{}{
			"type":        "integer",
			"enum":        []int{4, 8},
			"description": "Pixel adjacency for regions. Default 8",
		},
	}
}

// withPipeline merges the pipeline overrides into a tool's own properties.
func withPipeline(props map[string]interface{}) map[string]interface{} {
	for k, v := range pipelineProperties() {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load a micrograph and return its dimensions, format, bit depth and file size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of a micrograph.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Seed cell analysis
		{
			Name:        "seedcell_measure",
			Description: "Segment the cells of a micrograph and return one shape record per cell (identifier, area, perimeter, convex area, width, length, centroid) plus a run summary. Nothing is written to disk.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withPipeline(map[string]interface{}{
					"path": pathProperty(),
					"require_cells": map[string]interface{}{
						"type":        "boolean",
						"description": "Fail instead of returning an empty list when no cell survives filtering",
						"default":     false,
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "seedcell_analyse",
			Description: "Run the full analysis and write original, false_color, segmentation and labels images plus results.csv into an existing output directory.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withPipeline(map[string]interface{}{
					"path": pathProperty(),
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Existing directory that receives the artefacts",
					},
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"png", "tiff"},
						"description": "Image format of the artefacts. Default from configuration",
					},
					"debug": map[string]interface{}{
						"type":        "boolean",
						"description": "Also write numbered intermediate images",
					},
				}),
				"required": []string{"path", "output_dir"},
			},
		},
		{
			Name:        "seedcell_labels",
			Description: "Render every surviving cell's identifier at its centroid and return the image as base64-encoded PNG. Use this to match CSV rows to cells.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withPipeline(map[string]interface{}{
					"path": pathProperty(),
					"base": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"mask", "original"},
						"description": "Draw over the dimmed cell mask or the dimmed micrograph. Default mask",
						"default":     "mask",
					},
					"text_size": map[string]interface{}{
						"type":        "integer",
						"description": "Label height in pixels. Default from configuration",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "seedcell_threshold",
			Description: "Preview the adaptive threshold alone and return the binary mask as base64-encoded PNG with its foreground pixel count.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":             pathProperty(),
					"block_size":       pipelineProperties()["block_size"],
					"threshold_method": pipelineProperties()["threshold_method"],
					"threshold_offset": pipelineProperties()["threshold_offset"],
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "seedcell_region",
			Description: "Crop one cell, by identifier, out of the micrograph or its segmentation and return it as base64-encoded PNG together with its shape record.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withPipeline(map[string]interface{}{
					"path": pathProperty(),
					"identifier": map[string]interface{}{
						"type":        "integer",
						"description": "Cell identifier as reported by seedcell_measure",
					},
					"source": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"original", "segmentation"},
						"description": "Image to crop from. Default original",
						"default":     "original",
					},
					"padding": map[string]interface{}{
						"type":        "integer",
						"description": "Extra pixels around the bounding box. Default 10",
						"default":     10,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				}),
				"required": []string{"path", "identifier"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
