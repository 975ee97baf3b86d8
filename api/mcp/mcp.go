// Package mcp exposes the layered compaction as an MCP (Model Context
// Protocol) tool so chapter generators can fetch the history they continue
// from.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bochendong/dragon-continue/pkg/compaction"
	"github.com/bochendong/dragon-continue/pkg/utils"
)

// Summarizer produces rendered histories.
type Summarizer interface {
	Summary(ctx context.Context, req compaction.Request) (compaction.Response, error)
}

type Config struct {
	// Compactor answers compact_history calls.
	Compactor Summarizer

	// MergeFactor and DetailWindow apply when a call omits them.
	MergeFactor  int
	DetailWindow int

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the compact_history tool.
func NewServer(c Config) (*Server, error) {
	if c.Compactor == nil {
		return nil, errors.New("compactor is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.MergeFactor == 0 {
		c.MergeFactor = compaction.DefaultMergeFactor
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "dragon",
			Version: utils.ResolvedVersion(),
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        compactToolName,
		Description: compactDescription,
	}, s.handleCompact)

	s.mcpServer = mcpServer

	// Stateless streamable HTTP handler; every request gets the same server.
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
