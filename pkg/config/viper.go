package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/bochendong/dragon-continue/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the DRAGON_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (DRAGON_ORACLE_PROVIDER, DRAGON_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("DRAGON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Oracle
	v.SetDefault("oracle.provider", d.Oracle.Provider)
	v.SetDefault("oracle.model", d.Oracle.Model)
	v.SetDefault("oracle.base_url", d.Oracle.BaseURL)
	v.SetDefault("oracle.api_key", d.Oracle.APIKey)
	v.SetDefault("oracle.timeout", d.Oracle.Timeout)

	// Compaction
	v.SetDefault("compaction.merge_factor", d.Compaction.MergeFactor)
	v.SetDefault("compaction.detail_window", d.Compaction.Detail())
	v.SetDefault("compaction.concurrency", d.Compaction.Concurrency)
	v.SetDefault("compaction.window_cache_size", d.Compaction.WindowCacheSize)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Events
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
