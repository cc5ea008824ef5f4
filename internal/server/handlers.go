package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "slide_info", "slide_read_region").
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
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Fetches the slide from the pool, opening it as needed
//  4. Calls the appropriate slide operation
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Slide Information
	case "slide_info":
		return s.handleSlideInfo(args)

	// Region Extraction
	case "slide_read_region":
		return s.handleSlideReadRegion(args)
	case "slide_thumbnail":
		return s.handleSlideThumbnail(args)

	// Geometry Helpers
	case "slide_scaled_size":
		return s.handleSlideScaledSize(args)

	// Session Management
	case "slide_close":
		return s.handleSlideClose(args)

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

// === Result Types ===

// LevelInfo describes one stored pyramid level.
type LevelInfo struct {
	Level      int     `json:"level"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Downsample float64 `json:"downsample"`
}

// SlideInfo is the slide_info result.
type SlideInfo struct {
	Identifier    string            `json:"identifier"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	MPP           float64           `json:"mpp"`
	Magnification float64           `json:"magnification,omitempty"`
	Vendor        string            `json:"vendor,omitempty"`
	Levels        []LevelInfo       `json:"levels"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// RegionResult carries an extracted region as base64-encoded PNG.
type RegionResult struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Scaling     float64 `json:"scaling"`
	MPP         float64 `json:"mpp"`
	ImageBase64 string  `json:"image_base64"`
	MimeType    string  `json:"mime_type"`
}

// SizeResult is the slide_scaled_size result.
type SizeResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// encodeRegion serializes an extracted region to a base64 PNG result.
func encodeRegion(img *image.NRGBA, scaling, mpp float64) (*RegionResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}
	return &RegionResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		Scaling:     scaling,
		MPP:         mpp,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// === Slide Information Handlers ===

type slideInfoArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleSlideInfo(args json.RawMessage) (interface{}, error) {
	var a slideInfoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sl, err := s.openSlide(a.Path)
	if err != nil {
		return nil, err
	}

	size := sl.Size()
	dims := sl.LevelDimensions()
	downs := sl.LevelDownsamples()
	levels := make([]LevelInfo, len(dims))
	for i, d := range dims {
		levels[i] = LevelInfo{Level: i, Width: d.X, Height: d.Y, Downsample: downs[i]}
	}

	return &SlideInfo{
		Identifier:    sl.Identifier(),
		Width:         size.X,
		Height:        size.Y,
		MPP:           sl.MPP(),
		Magnification: sl.Magnification(),
		Vendor:        sl.Vendor(),
		Levels:        levels,
		Properties:    sl.Properties(),
	}, nil
}

// === Region Extraction Handlers ===

type slideReadRegionArgs struct {
	Path    string  `json:"path"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Scaling float64 `json:"scaling"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	MPP     float64 `json:"mpp"`
}

func (s *Server) handleSlideReadRegion(args json.RawMessage) (interface{}, error) {
	var a slideReadRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sl, err := s.openSlide(a.Path)
	if err != nil {
		return nil, err
	}

	scaling := a.Scaling
	if a.MPP > 0 {
		scaling = sl.ScalingForMPP(a.MPP)
	} else if scaling == 0 {
		scaling = 1.0
	}

	img, err := sl.ReadRegion(a.X, a.Y, scaling, a.Width, a.Height)
	if err != nil {
		return nil, err
	}
	return encodeRegion(img, scaling, sl.MPPAt(scaling))
}

type slideThumbnailArgs struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (s *Server) handleSlideThumbnail(args json.RawMessage) (interface{}, error) {
	var a slideThumbnailArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Width == 0 {
		a.Width = s.cfg.Thumbnail.Width
	}
	if a.Height == 0 {
		a.Height = s.cfg.Thumbnail.Height
	}
	sl, err := s.openSlide(a.Path)
	if err != nil {
		return nil, err
	}

	img, err := sl.Thumbnail(image.Pt(a.Width, a.Height))
	if err != nil {
		return nil, err
	}
	scaling := float64(img.Bounds().Dx()) / float64(sl.Size().X)
	return encodeRegion(img, scaling, sl.MPPAt(scaling))
}

// === Geometry Helper Handlers ===

type slideScaledSizeArgs struct {
	Path        string  `json:"path"`
	Scaling     float64 `json:"scaling"`
	LimitBounds bool    `json:"limit_bounds"`
}

func (s *Server) handleSlideScaledSize(args json.RawMessage) (interface{}, error) {
	var a slideScaledSizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sl, err := s.openSlide(a.Path)
	if err != nil {
		return nil, err
	}

	size := sl.ScaledSize(a.Scaling, a.LimitBounds)
	return &SizeResult{Width: size.X, Height: size.Y}, nil
}

// === Session Management Handlers ===

type slideCloseArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleSlideClose(args json.RawMessage) (interface{}, error) {
	var a slideCloseArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := s.closeSlide(a.Path); err != nil {
		return nil, err
	}
	return map[string]bool{"closed": true}, nil
}
