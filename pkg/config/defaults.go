package config

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	defaultBackend        = BackendSQLite
	defaultOracleProvider = "ollama"
	defaultOracleTimeout  = "60s"
	defaultAPIListen      = ":8081"
	defaultEventsTopic    = "dragon.compactions"

	defaultMergeFactor     = 3
	defaultDetailWindow    = 3
	defaultConcurrency     = 1
	defaultWindowCacheSize = 256
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	detail := uint(defaultDetailWindow)
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Backend: defaultBackend,
		},
		Oracle: OracleConfig{
			Provider: defaultOracleProvider,
			Timeout:  defaultOracleTimeout,
		},
		Compaction: CompactionConfig{
			MergeFactor:     defaultMergeFactor,
			DetailWindow:    &detail,
			Concurrency:     defaultConcurrency,
			WindowCacheSize: defaultWindowCacheSize,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
