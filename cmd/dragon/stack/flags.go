package stack

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/pkg/config"
	"github.com/bochendong/dragon-continue/pkg/logger"
)

// Flag groups shared by commands.
var (
	StorageFlags = []string{
		config.FlagStorageBackend,
		config.FlagSQLite,
		config.FlagPostgresDSN,
	}

	CompactionFlags = []string{
		config.FlagOracleProvider,
		config.FlagOracleModel,
		config.FlagOracleBaseURL,
		config.FlagOracleTimeout,
		config.FlagMergeFactor,
		config.FlagDetailWindow,
		config.FlagConcurrency,
		config.FlagWindowCacheSize,
		config.FlagKafkaBrokers,
		config.FlagKafkaTopic,
	}
)

var uintFlags = map[string]bool{
	config.FlagMergeFactor:     true,
	config.FlagDetailWindow:    true,
	config.FlagConcurrency:     true,
	config.FlagWindowCacheSize: true,
}

// AddFlags registers the named registry flags on cmd. Values are read back
// through viper, so the flag targets are not kept.
func AddFlags(cmd *cobra.Command, keys ...string) {
	for _, key := range keys {
		if uintFlags[key] {
			config.AddUintFlag(cmd, config.Flags, key, new(uint))
			continue
		}
		config.AddStringFlag(cmd, config.Flags, key, new(string))
	}
}

// Load resolves settings for cmd, binding the named registry flags over the
// config file and environment.
func Load(cmd *cobra.Command, keys ...string) (Settings, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return Settings{}, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	return Resolve(v, configDir)
}

// Logger builds the CLI logger on stderr, honouring the persistent --debug flag.
func Logger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithSource(debug),
		logger.WithWriter(cmd.ErrOrStderr()),
	)
}
