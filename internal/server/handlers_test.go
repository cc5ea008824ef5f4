package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/microscopy-io/slidekit/internal/backend"
)

// testStorePath writes a small pyramid store and returns its path.
func testStorePath(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 100, 50, 255})
		}
	}
	dir := filepath.Join(t.TempDir(), "slide.pyr")
	err := backend.BuildStore(img, dir, backend.BuildOptions{
		Spacing:      &backend.Spacing{X: 0.5, Y: 0.5},
		Vendor:       "test-scanner",
		MinLevelSize: 64,
	})
	if err != nil {
		t.Fatalf("BuildStore failed: %v", err)
	}
	return dir
}

// jsonQuote quotes a string as a JSON literal.
func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// callTool executes a tool with JSON arguments and fails the test on error.
func callTool(t *testing.T, s *Server, name, args string) interface{} {
	t.Helper()
	result, err := s.executeTool(name, json.RawMessage(args))
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	return result
}

// decodeRegionPNG decodes the base64 PNG payload of a RegionResult.
func decodeRegionPNG(t *testing.T, r *RegionResult) image.Image {
	t.Helper()
	if r.MimeType != "image/png" {
		t.Fatalf("mime type = %q, want image/png", r.MimeType)
	}
	raw, err := base64.StdEncoding.DecodeString(r.ImageBase64)
	if err != nil {
		t.Fatalf("base64 decode failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("png decode failed: %v", err)
	}
	return img
}

func TestExecuteTool_Unknown(t *testing.T) {
	s := New(nil)
	_, err := s.executeTool("slide_rotate", json.RawMessage(`{}`))
	if err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Errorf("executeTool = %v, want unknown tool error", err)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(nil)
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": 42}`),
	}

	resp := s.handleRequest(req)
	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestHandleToolsCall_ContentFormat(t *testing.T) {
	s := New(nil)
	defer s.CloseAll()
	path := testStorePath(t)

	params, _ := json.Marshal(ToolCallParams{
		Name:      "slide_info",
		Arguments: json.RawMessage(`{"path": ` + jsonQuote(path) + `}`),
	})
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 7, Method: "tools/call", Params: params})

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content should hold one entry, got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type = %v, want text", content[0]["type"])
	}

	var info SlideInfo
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &info); err != nil {
		t.Fatalf("content text should be JSON: %v", err)
	}
	if info.Width != 256 {
		t.Errorf("info width = %d, want 256", info.Width)
	}
}

func TestHandleSlideInfo(t *testing.T) {
	s := New(nil)
	defer s.CloseAll()
	path := testStorePath(t)

	result := callTool(t, s, "slide_info", `{"path": `+jsonQuote(path)+`}`)
	info, ok := result.(*SlideInfo)
	if !ok {
		t.Fatalf("result type = %T, want *SlideInfo", result)
	}

	if info.Identifier != path {
		t.Errorf("identifier = %q, want the path", info.Identifier)
	}
	if info.Width != 256 || info.Height != 256 {
		t.Errorf("dimensions = %dx%d, want 256x256", info.Width, info.Height)
	}
	if info.MPP != 0.5 {
		t.Errorf("mpp = %g, want 0.5", info.MPP)
	}
	if info.Vendor != "test-scanner" {
		t.Errorf("vendor = %q, want test-scanner", info.Vendor)
	}
	// 256 -> 128 -> 64 with MinLevelSize 64
	if len(info.Levels) != 3 {
		t.Fatalf("levels = %d, want 3", len(info.Levels))
	}
	if info.Levels[1].Downsample != 2 || info.Levels[1].Width != 128 {
		t.Errorf("level 1 = %+v, want 128px at downsample 2", info.Levels[1])
	}
}

func TestHandleSlideReadRegion(t *testing.T) {
	s := New(nil)
	defer s.CloseAll()
	path := testStorePath(t)

	result := callTool(t, s, "slide_read_region",
		`{"path": `+jsonQuote(path)+`, "x": 16, "y": 16, "scaling": 0.5, "width": 32, "height": 32}`)
	region, ok := result.(*RegionResult)
	if !ok {
		t.Fatalf("result type = %T, want *RegionResult", result)
	}

	if region.Width != 32 || region.Height != 32 {
		t.Errorf("dimensions = %dx%d, want 32x32", region.Width, region.Height)
	}
	if region.Scaling != 0.5 {
		t.Errorf("scaling = %g, want 0.5", region.Scaling)
	}
	if region.MPP != 1.0 {
		t.Errorf("mpp = %g, want 1.0", region.MPP)
	}

	img := decodeRegionPNG(t, region)
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 32 {
		t.Errorf("decoded size = %v, want (32, 32)", img.Bounds().Size())
	}
	r, g, b, _ := img.At(16, 16).RGBA()
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Errorf("center pixel = (%d, %d, %d), want the store fill color", r>>8, g>>8, b>>8)
	}
}

func TestHandleSlideReadRegion_MPPOverridesScaling(t *testing.T) {
	s := New(nil)
	defer s.CloseAll()
	path := testStorePath(t)

	// 1.0 um/px on a 0.5 um/px slide means scaling 0.5.
	result := callTool(t, s, "slide_read_region",
		`{"path": `+jsonQuote(path)+`, "x": 0, "y": 0, "mpp": 1.0, "scaling": 1.0, "width": 16, "height": 16}`)
	region := result.(*RegionResult)
	if region.Scaling != 0.5 {
		t.Errorf("scaling = %g, want 0.5 derived from mpp", region.Scaling)
	}
}

func TestHandleSlideReadRegion_DefaultScaling(t *testing.T) {
	s := New(nil)
	defer s.CloseAll()
	path := testStorePath(t)

	result := callTool(t, s, "slide_read_region",
		`{"path": `+jsonQuote(path)+`, "x": 0, "y": 0, "width": 16, "height": 16}`)
	region := result.(*RegionResult)
	if region.Scaling != 1.0 {
		t.Errorf("scaling = %g, want the default 1.0", region.Scaling)
	}
	if region.MPP != 0.5 {
		t.Errorf("mpp = %g, want the native 0.5", region.MPP)
	}
}

func TestHandleSlideReadRegion_OutOfBounds(t *testing.T) {
	s := New(nil)
	defer s.CloseAll()
	path := testStorePath(t)

	_, err := s.executeTool("slide_read_region", json.RawMessage(
		`{"path": `+jsonQuote(path)+`, "x": 250, "y": 250, "scaling": 1.0, "width": 32, "height": 32}`))
	if err == nil {
		t.Error("out-of-bounds region should fail")
	}
}

func TestHandleSlideThumbnail(t *testing.T) {
	s := New(nil)
	defer s.CloseAll()
	path := testStorePath(t)

	result := callTool(t, s, "slide_thumbnail",
		`{"path": `+jsonQuote(path)+`, "width": 64, "height": 64}`)
	region := result.(*RegionResult)
	if region.Width != 64 || region.Height != 64 {
		t.Errorf("thumbnail = %dx%d, want 64x64", region.Width, region.Height)
	}
	decodeRegionPNG(t, region)
}

func TestHandleSlideScaledSize(t *testing.T) {
	s := New(nil)
	defer s.CloseAll()
	path := testStorePath(t)

	result := callTool(t, s, "slide_scaled_size",
		`{"path": `+jsonQuote(path)+`, "scaling": 0.5}`)
	size, ok := result.(*SizeResult)
	if !ok {
		t.Fatalf("result type = %T, want *SizeResult", result)
	}
	if size.Width != 128 || size.Height != 128 {
		t.Errorf("size = %dx%d, want 128x128", size.Width, size.Height)
	}
}

func TestHandleSlideClose(t *testing.T) {
	s := New(nil)
	defer s.CloseAll()
	path := testStorePath(t)

	callTool(t, s, "slide_info", `{"path": `+jsonQuote(path)+`}`)
	if len(s.slides) != 1 {
		t.Fatalf("pool size = %d, want 1", len(s.slides))
	}

	result := callTool(t, s, "slide_close", `{"path": `+jsonQuote(path)+`}`)
	closed, ok := result.(map[string]bool)
	if !ok || !closed["closed"] {
		t.Errorf("slide_close = %v, want closed: true", result)
	}
	if len(s.slides) != 0 {
		t.Errorf("pool size after close = %d, want 0", len(s.slides))
	}

	// Closing an unpooled slide is a no-op.
	callTool(t, s, "slide_close", `{"path": `+jsonQuote(path)+`}`)

	// The next call reopens the slide.
	callTool(t, s, "slide_info", `{"path": `+jsonQuote(path)+`}`)
	if len(s.slides) != 1 {
		t.Errorf("pool size after reopen = %d, want 1", len(s.slides))
	}
}

func TestPoolReusesOpenSlides(t *testing.T) {
	s := New(nil)
	defer s.CloseAll()
	path := testStorePath(t)

	first, err := s.openSlide(path)
	if err != nil {
		t.Fatalf("openSlide failed: %v", err)
	}
	second, err := s.openSlide(path)
	if err != nil {
		t.Fatalf("openSlide failed: %v", err)
	}
	if first != second {
		t.Error("openSlide should return the pooled slide")
	}
}

func TestOpenSlide_MissingFile(t *testing.T) {
	s := New(nil)
	_, err := s.executeTool("slide_info", json.RawMessage(
		`{"path": `+jsonQuote(filepath.Join(t.TempDir(), "absent.pyr"))+`}`))
	if err == nil {
		t.Error("opening a missing slide should fail")
	}
}

func TestMustMarshalJSON(t *testing.T) {
	out := mustMarshalJSON(map[string]int{"a": 1})
	var decoded map[string]int
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["a"] != 1 {
		t.Errorf("roundtrip = %v", decoded)
	}
}
