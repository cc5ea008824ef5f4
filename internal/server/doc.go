// Package server implements the MCP (Model Context Protocol) server for slide tools.
//
// This package provides a JSON-RPC 2.0 server that exposes whole-slide image
// reading through the MCP protocol, so MCP-compatible clients can inspect
// slides and extract regions at arbitrary resolutions.
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
//   - slide_info: Open a slide and return its metadata and pyramid layout
//   - slide_read_region: Extract a region at an arbitrary scaling as base64 PNG
//   - slide_thumbnail: Generate a fitted thumbnail as base64 PNG
//   - slide_scaled_size: Compute slide dimensions at a scaling
//   - slide_close: Release a pooled slide
//
// # Slide Pooling
//
// The server keeps opened slides in an in-memory pool keyed by path, so a
// session can issue many region reads without re-opening the backend each
// time. slide_close evicts a single slide; every pooled slide is released
// when the server shuts down.
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
// The server is typically started by an MCP client:
//
//	srv := server.New(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
