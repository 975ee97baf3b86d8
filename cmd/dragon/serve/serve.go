// Package servecmder provides the serve command, which runs the compaction
// HTTP API with its MCP endpoint and Prometheus metrics.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/api"
	"github.com/bochendong/dragon-continue/cmd/dragon/stack"
	"github.com/bochendong/dragon-continue/pkg/config"
	"github.com/bochendong/dragon-continue/pkg/logger"
)

type serveCommander struct {
	mcp       bool
	logFormat string
	logFile   string
}

const serveLongDesc string = `Run the dragon API server.

Serves layered summaries over HTTP:
  GET    /v1/compactions/:chapter     Render (or fetch cached) summary
  GET    /v1/chapters                 List the chapter log
  GET    /v1/cache                    List cached summaries
  GET    /v1/cache/:chapter/:factor   Fetch one cached summary
  DELETE /v1/cache/:chapter/:factor   Invalidate one cached summary
  GET    /metrics                     Prometheus metrics
  POST   /mcp                         MCP endpoint (compact_history tool)

Examples:
  dragon serve
  dragon serve --listen :9000 --provider anthropic
  dragon serve --storage postgres --postgres-dsn postgres://localhost/dragon
  dragon serve --log-format json --log-file /var/log/dragon.jsonl`

const serveShortDesc string = "Run the dragon API server"

var serveFlags = append(append(append([]string{}, stack.StorageFlags...), stack.CompactionFlags...), config.FlagAPIListen)

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := stack.Load(cmd, serveFlags...)
			if err != nil {
				return err
			}
			return cmder.run(cmd, settings)
		},
	}

	stack.AddFlags(cmd, serveFlags...)
	cmd.Flags().BoolVar(&cmder.mcp, "mcp", true, "Expose the MCP endpoint at /mcp")
	cmd.Flags().StringVar(&cmder.logFormat, "log-format", "pretty", "Log format on stderr (text, pretty, json)")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command, settings stack.Settings) error {
	log, closeLog, err := c.newLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := stack.New(cmd.Context(), settings, log)
	if err != nil {
		return err
	}
	defer st.Close()

	server, err := newServer(st, c.mcp, log)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	case <-cmd.Context().Done():
		return server.Shutdown()
	}
}

// newLogger builds the stderr logger and, with --log-file, a JSON logger
// appending to that file alongside it.
func (c *serveCommander) newLogger(cmd *cobra.Command) (*slog.Logger, func(), error) {
	format, err := logger.ParseFormat(c.logFormat)
	if err != nil {
		return nil, nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")

	console := logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(format),
		logger.WithWriter(cmd.ErrOrStderr()),
		logger.WithComponent("serve"),
	)
	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(logger.FormatJSON),
		logger.WithWriter(f),
		logger.WithComponent("serve"),
	)
	return logger.Multi(console, file), func() { _ = f.Close() }, nil
}

func newServer(st *stack.Stack, mcp bool, log *slog.Logger) (*api.Server, error) {
	return api.NewServer(api.Config{
		ListenAddr:   st.Settings.Listen,
		MergeFactor:  st.Settings.MergeFactor,
		DetailWindow: st.Settings.DetailWindow,
		Gatherer:     st.Registry,
		MCP:          mcp,
	}, st.Service, log)
}
