package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bochendong/dragon-continue/pkg/compaction"
)

// Config represents the persistent dragon configuration stored as config.toml
// in the .dragon/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Storage    StorageConfig    `toml:"storage"`
	Oracle     OracleConfig     `toml:"oracle"`
	Compaction CompactionConfig `toml:"compaction"`
	API        APIConfig        `toml:"api"`
	Events     EventsConfig     `toml:"events"`

	// Heuristics overrides the fallback compactor's keyword tables. Tables
	// left empty keep their built-in values.
	Heuristics *compaction.Heuristics `toml:"heuristics,omitempty"`
}

// StorageConfig selects where chapters and merge summaries live.
type StorageConfig struct {
	Backend     string `toml:"backend,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// OracleConfig holds the summarizer model settings.
type OracleConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
	Timeout  string `toml:"timeout,omitempty"`
}

// CompactionConfig holds engine tuning. DetailWindow is a pointer because
// zero is a meaningful value.
type CompactionConfig struct {
	MergeFactor     uint  `toml:"merge_factor,omitempty"`
	DetailWindow    *uint `toml:"detail_window,omitempty"`
	Concurrency     uint  `toml:"concurrency,omitempty"`
	WindowCacheSize uint  `toml:"window_cache_size,omitempty"`
}

// Detail returns the configured detail window.
func (c CompactionConfig) Detail() uint {
	if c.DetailWindow == nil {
		return 0
	}
	return *c.DetailWindow
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig holds the Kafka publisher settings. Publishing is disabled
// while Brokers is empty.
type EventsConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits the comma separated broker list.
func (e EventsConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// ResolvedHeuristics returns the built-in tables overlaid with any overrides.
func (c *Config) ResolvedHeuristics() compaction.Heuristics {
	h := compaction.DefaultHeuristics()
	if c.Heuristics != nil {
		h = h.Merge(*c.Heuristics)
	}
	return h
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string, min uint64) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if n < min {
		return 0, fmt.Errorf("invalid value for %s: must be at least %d", key, min)
	}
	return uint(n), nil
}

func oneOf(key, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("invalid value for %s: %q (expected one of %s)", key, v, strings.Join(allowed, ", "))
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.backend": {
		get: func(c *Config) string { return c.Storage.Backend },
		set: func(c *Config, v string) error {
			if err := oneOf("storage.backend", v, BackendSQLite, BackendPostgres); err != nil {
				return err
			}
			c.Storage.Backend = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"oracle.provider": {
		get: func(c *Config) string { return c.Oracle.Provider },
		set: func(c *Config, v string) error {
			if err := oneOf("oracle.provider", v, ValidPresetNames()...); err != nil {
				return err
			}
			c.Oracle.Provider = v
			return nil
		},
	},
	"oracle.model": {
		get: func(c *Config) string { return c.Oracle.Model },
		set: func(c *Config, v string) error { c.Oracle.Model = v; return nil },
	},
	"oracle.base_url": {
		get: func(c *Config) string { return c.Oracle.BaseURL },
		set: func(c *Config, v string) error { c.Oracle.BaseURL = v; return nil },
	},
	"oracle.api_key": {
		get: func(c *Config) string { return c.Oracle.APIKey },
		set: func(c *Config, v string) error { c.Oracle.APIKey = v; return nil },
	},
	"oracle.timeout": {
		get: func(c *Config) string { return c.Oracle.Timeout },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for oracle.timeout: %w", err)
			}
			if d <= 0 {
				return fmt.Errorf("invalid value for oracle.timeout: must be positive")
			}
			c.Oracle.Timeout = v
			return nil
		},
	},
	"compaction.merge_factor": {
		get: func(c *Config) string { return formatUint(c.Compaction.MergeFactor) },
		set: func(c *Config, v string) error {
			n, err := parseUint("compaction.merge_factor", v, 2)
			if err != nil {
				return err
			}
			c.Compaction.MergeFactor = n
			return nil
		},
	},
	"compaction.detail_window": {
		get: func(c *Config) string {
			if c.Compaction.DetailWindow == nil {
				return ""
			}
			return strconv.FormatUint(uint64(*c.Compaction.DetailWindow), 10)
		},
		set: func(c *Config, v string) error {
			n, err := parseUint("compaction.detail_window", v, 0)
			if err != nil {
				return err
			}
			c.Compaction.DetailWindow = &n
			return nil
		},
	},
	"compaction.concurrency": {
		get: func(c *Config) string { return formatUint(c.Compaction.Concurrency) },
		set: func(c *Config, v string) error {
			n, err := parseUint("compaction.concurrency", v, 1)
			if err != nil {
				return err
			}
			c.Compaction.Concurrency = n
			return nil
		},
	},
	"compaction.window_cache_size": {
		get: func(c *Config) string { return formatUint(c.Compaction.WindowCacheSize) },
		set: func(c *Config, v string) error {
			n, err := parseUint("compaction.window_cache_size", v, 0)
			if err != nil {
				return err
			}
			c.Compaction.WindowCacheSize = n
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
