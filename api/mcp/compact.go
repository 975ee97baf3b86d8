package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bochendong/dragon-continue/pkg/compaction"
)

var (
	compactToolName    = "compact_history"
	compactDescription = "Return the layered plot outline of every chapter up to the given chapter: recent chapters in full, older chapters merged into progressively coarser windows. Use it before writing the next chapter."
)

// CompactInput is the input of the compact_history tool.
type CompactInput struct {
	Chapter      int  `json:"chapter" jsonschema:"the chapter the history is observed from (inclusive)"`
	MergeFactor  int  `json:"merge_factor,omitempty" jsonschema:"chapters merged per window at the first layer (default: 3)"`
	DetailWindow *int `json:"detail_window,omitempty" jsonschema:"number of most recent chapters kept verbatim (default: 3)"`
	Force        bool `json:"force,omitempty" jsonschema:"recompute even when a cached rendering exists"`
}

// CompactOutput is the structured result of compact_history.
type CompactOutput struct {
	Chapter     int      `json:"chapter"`
	MergeFactor int      `json:"merge_factor"`
	Text        string   `json:"text"`
	TextLength  int      `json:"text_length"`
	LayerCount  int      `json:"layer_count"`
	Titles      []string `json:"titles"`
	Cached      bool     `json:"cached"`
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// handleCompact processes a compact_history call.
func (s *Server) handleCompact(ctx context.Context, _ *mcp.CallToolRequest, input CompactInput) (*mcp.CallToolResult, CompactOutput, error) {
	logger := s.config.Logger

	req := s.request(input)
	logger.Debug("MCP compact request",
		"chapter", req.Observation,
		"merge_factor", req.MergeFactor,
		"detail_window", req.DetailWindow,
	)

	resp, err := s.config.Compactor.Summary(ctx, req)
	if resp.Entry == nil {
		logger.Error("compaction failed", "chapter", req.Observation, "error", err)
		return errorResult("Failed to compact history: %v", err), CompactOutput{}, nil
	}
	if err != nil {
		logger.Warn("serving uncached rendering", "chapter", req.Observation, "error", err)
	}

	output := CompactOutput{
		Chapter:     resp.Entry.Observation,
		MergeFactor: resp.Entry.MergeFactor,
		Text:        resp.Entry.Text,
		TextLength:  resp.Entry.TextLength,
		LayerCount:  resp.Entry.LayerCount,
		Titles:      resp.Entry.Titles,
		Cached:      resp.Hit,
	}

	// Structured tool results also carry their JSON in a TextContent block.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal compact output", "error", err)
		return errorResult("Failed to serialize result: %v", err), CompactOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func (s *Server) request(input CompactInput) compaction.Request {
	req := compaction.Request{
		Observation:  input.Chapter,
		MergeFactor:  input.MergeFactor,
		DetailWindow: s.config.DetailWindow,
		Force:        input.Force,
	}
	if req.MergeFactor == 0 {
		req.MergeFactor = s.config.MergeFactor
	}
	if input.DetailWindow != nil {
		req.DetailWindow = *input.DetailWindow
	}
	return req
}
