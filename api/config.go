// Package api provides an HTTP API server for requesting layered compactions
// and inspecting the merge cache.
package api

import "github.com/prometheus/client_golang/prometheus"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// MergeFactor and DetailWindow are used when a request omits them.
	MergeFactor  int
	DetailWindow int

	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer

	// MCP mounts the compact_history tool at /mcp.
	MCP bool
}
