package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Slide Information
		{
			Name:        "slide_info",
			Description: "Open a whole-slide image and return its metadata: dimensions, microns per pixel, magnification, vendor, and the pyramid levels with their downsample factors.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the slide file or pyramid store directory",
					},
				},
				"required": []string{"path"},
			},
		},

		// Region Extraction
		{
			Name:        "slide_read_region",
			Description: "Extract a region from a whole-slide image at an arbitrary continuous scaling and return it as base64-encoded PNG. Coordinates are given in the scaled coordinate system.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the slide file or pyramid store directory",
					},
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Left edge of the region, in pixels at the requested scaling (may be fractional)",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Top edge of the region, in pixels at the requested scaling (may be fractional)",
					},
					"scaling": map[string]interface{}{
						"type":        "number",
						"description": "Scaling relative to the level-zero resolution (e.g., 0.5 for half resolution). Default 1.0",
						"default":     1.0,
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Output width in pixels",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Output height in pixels",
					},
					"mpp": map[string]interface{}{
						"type":        "number",
						"description": "Target microns per pixel; overrides 'scaling' when set",
					},
				},
				"required": []string{"path", "x", "y", "width", "height"},
			},
		},
		{
			Name:        "slide_thumbnail",
			Description: "Generate a thumbnail of the whole slide, fitted within the given bounds, as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the slide file or pyramid store directory",
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum thumbnail width (default 512)",
						"default":     512,
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum thumbnail height (default 512)",
						"default":     512,
					},
				},
				"required": []string{"path"},
			},
		},

		// Geometry Helpers
		{
			Name:        "slide_scaled_size",
			Description: "Compute the slide dimensions at an arbitrary scaling, optionally limited to the vendor-reported tissue bounds.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the slide file or pyramid store directory",
					},
					"scaling": map[string]interface{}{
						"type":        "number",
						"description": "Scaling relative to the level-zero resolution",
					},
					"limit_bounds": map[string]interface{}{
						"type":        "boolean",
						"description": "Limit to the vendor-reported slide bounds instead of the full canvas",
						"default":     false,
					},
				},
				"required": []string{"path", "scaling"},
			},
		},

		// Session Management
		{
			Name:        "slide_close",
			Description: "Close a pooled slide and release its resources. Subsequent tool calls for the same path reopen it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the slide file or pyramid store directory",
					},
				},
				"required": []string{"path"},
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
