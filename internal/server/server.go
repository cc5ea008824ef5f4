package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/microscopy-io/slidekit/internal/backend"
	"github.com/microscopy-io/slidekit/internal/config"
	"github.com/microscopy-io/slidekit/internal/resample"
	"github.com/microscopy-io/slidekit/internal/slide"
)

// Server handles MCP protocol communication for slide tools.
type Server struct {
	cfg *config.Config

	mu     sync.Mutex
	slides map[string]*slide.Slide
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance
func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Server{
		cfg:    cfg,
		slides: make(map[string]*slide.Slide),
	}
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	defer s.CloseAll()

	scanner := bufio.NewScanner(os.Stdin)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("Failed to parse request: %v", err)
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				log.Printf("Failed to encode response: %v", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "slidekit",
				"version": "0.1.0",
			},
		},
	}
}

// openSlide returns the slide for path, opening and pooling it on first
// use. The pool lets one session issue many region reads against the
// same slide without re-opening the backend each time.
func (s *Server) openSlide(path string) (*slide.Slide, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok := s.slides[path]; ok {
		return sl, nil
	}

	opts, err := s.slideOptions()
	if err != nil {
		return nil, err
	}
	sl, err := slide.Open(path, opts)
	if err != nil {
		return nil, err
	}
	s.slides[path] = sl
	return sl, nil
}

// closeSlide evicts and closes the slide for path, if pooled.
func (s *Server) closeSlide(path string) error {
	s.mu.Lock()
	sl, ok := s.slides[path]
	delete(s.slides, path)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return sl.Close()
}

// CloseAll releases every pooled slide.
func (s *Server) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, sl := range s.slides {
		if err := sl.Close(); err != nil {
			log.Printf("Failed to close %s: %v", path, err)
		}
		delete(s.slides, path)
	}
}

// slideOptions translates the server configuration into open options.
func (s *Server) slideOptions() (slide.Options, error) {
	kernel, err := resample.ParseKernel(s.cfg.Region.Kernel)
	if err != nil {
		return slide.Options{}, err
	}
	pipeline, err := resample.ParsePipeline(s.cfg.Region.Pipeline)
	if err != nil {
		return slide.Options{}, err
	}

	opts := slide.Options{
		Backend:           s.cfg.Slide.Backend,
		Kernel:            kernel,
		Pipeline:          pipeline,
		ApplyColorProfile: s.cfg.Region.ApplyColorProfile,
	}
	if mpp := s.cfg.Slide.OverwriteMPP; mpp[0] > 0 && mpp[1] > 0 {
		opts.OverwriteMPP = &backend.Spacing{X: mpp[0], Y: mpp[1]}
	}
	return opts, nil
}
