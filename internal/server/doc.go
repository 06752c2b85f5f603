// Package server implements the MCP (Model Context Protocol) server for seed
// cell measurement.
//
// This package provides a JSON-RPC 2.0 server that exposes the seed cell
// pipeline to MCP clients, so an assistant can segment a micrograph, read the
// per-cell shape table and look at individual cells without touching the CLI.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Seed Cell Analysis:
//   - seedcell_measure: Segment and return one shape record per cell
//   - seedcell_analyse: Write the full artefact set to a directory
//   - seedcell_labels: Render cell identifiers at their centroids
//   - seedcell_threshold: Preview the adaptive threshold mask
//   - seedcell_region: Crop a single cell by identifier
//
// Every seedcell_* tool accepts the pipeline parameters (block_size,
// threshold_method, threshold_offset, min_object_size, clear_border,
// area_threshold, connectivity). Omitted values come from the configuration
// the server was started with.
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Images are cached
// by path and reused across multiple tool calls, avoiding redundant disk I/O.
// The cache persists for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(cfg, logger, version)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
