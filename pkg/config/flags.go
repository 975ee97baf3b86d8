package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// on "dragon compact" and "dragon serve" cannot drift.
type Flag struct {
	// Name is the long flag name (e.g. "merge-factor").
	Name string

	// Shorthand is the one-letter short flag (e.g. "f"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "compaction.merge_factor").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagStorageBackend  = "storage"
	FlagSQLite          = "sqlite"
	FlagPostgresDSN     = "postgres-dsn"
	FlagOracleProvider  = "provider"
	FlagOracleModel     = "model"
	FlagOracleBaseURL   = "oracle-url"
	FlagOracleTimeout   = "oracle-timeout"
	FlagMergeFactor     = "merge-factor"
	FlagDetailWindow    = "detail-window"
	FlagConcurrency     = "concurrency"
	FlagWindowCacheSize = "window-cache-size"
	FlagAPIListen       = "listen"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"
)

// Flags is the shared registry used by every dragon command.
var Flags = FlagSet{
	FlagStorageBackend:  {Name: "storage", ViperKey: "storage.backend", Description: "Storage backend (sqlite, postgres)"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: .dragon/dragon.db)"},
	FlagPostgresDSN:     {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagOracleProvider:  {Name: "provider", ViperKey: "oracle.provider", Description: "Summarizer provider (openai, anthropic, ollama, none)"},
	FlagOracleModel:     {Name: "model", ViperKey: "oracle.model", Description: "Summarizer model name"},
	FlagOracleBaseURL:   {Name: "oracle-url", ViperKey: "oracle.base_url", Description: "Summarizer base URL override"},
	FlagOracleTimeout:   {Name: "oracle-timeout", ViperKey: "oracle.timeout", Description: "Per-window summarizer timeout"},
	FlagMergeFactor:     {Name: "merge-factor", Shorthand: "f", ViperKey: "compaction.merge_factor", Description: "Chapters merged per window at layer 1"},
	FlagDetailWindow:    {Name: "detail-window", Shorthand: "w", ViperKey: "compaction.detail_window", Description: "Most recent chapters kept verbatim"},
	FlagConcurrency:     {Name: "concurrency", Shorthand: "c", ViperKey: "compaction.concurrency", Description: "Windows compacted in parallel"},
	FlagWindowCacheSize: {Name: "window-cache-size", ViperKey: "compaction.window_cache_size", Description: "In-process window memo size (0 disables)"},
	FlagAPIListen:       {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	FlagKafkaBrokers:    {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers for compaction events"},
	FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "events.topic", Description: "Kafka topic for compaction events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
