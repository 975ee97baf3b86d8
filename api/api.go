package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bochendong/dragon-continue/api/mcp"
	"github.com/bochendong/dragon-continue/pkg/chapter"
	"github.com/bochendong/dragon-continue/pkg/compaction"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

// Compactor is the slice of compaction.Service the server depends on.
type Compactor interface {
	Summary(ctx context.Context, req compaction.Request) (compaction.Response, error)
	Invalidate(ctx context.Context, key mergecache.Key) error
	Cached(ctx context.Context, key mergecache.Key) (*mergecache.Entry, error)
	Entries(ctx context.Context) ([]*mergecache.Entry, error)
	Chapters(ctx context.Context) ([]chapter.Record, error)
}

// Server is the API server for the dragon compaction service.
type Server struct {
	config    Config
	compactor Compactor
	logger    *slog.Logger
	app       *fiber.App
}

// NewServer creates a new API server around compactor.
func NewServer(config Config, compactor Compactor, logger *slog.Logger) (*Server, error) {
	if compactor == nil {
		return nil, errors.New("compactor is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.MergeFactor == 0 {
		config.MergeFactor = compaction.DefaultMergeFactor
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		compactor: compactor,
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/chapters", s.handleListChapters)
	app.Get("/v1/compactions/:chapter", s.handleCompact)
	app.Get("/v1/cache", s.handleListCache)
	app.Get("/v1/cache/:chapter/:factor", s.handleGetCache)
	app.Delete("/v1/cache/:chapter/:factor", s.handleInvalidateCache)

	if config.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})))
	}

	if config.MCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Compactor:    compactor,
			MergeFactor:  config.MergeFactor,
			DetailWindow: config.DetailWindow,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// App exposes the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
