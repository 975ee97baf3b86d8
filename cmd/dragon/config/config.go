// Package configcmder provides the config command for managing persistent
// dragon configuration stored in the .dragon/ directory.
package configcmder

import (
	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/pkg/config"
)

const configLongDesc string = `Manage persistent dragon configuration.

Configuration is stored as config.toml in the .dragon/ directory and provides
default values for command flags. CLI flags and DRAGON_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.backend, storage.sqlite_path, storage.postgres_dsn,
  oracle.provider, oracle.model, oracle.base_url, oracle.api_key, oracle.timeout,
  compaction.merge_factor, compaction.detail_window,
  compaction.concurrency, compaction.window_cache_size,
  api.listen, events.brokers, events.topic

Heuristic tables for the fallback compactor live in the [heuristics] section
and are edited in the file directly.

Examples:
  dragon config set oracle.provider anthropic
  dragon config set compaction.merge_factor 4
  dragon config get oracle.provider
  dragon config list`

const configShortDesc string = "Manage persistent dragon configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validKeyArgs(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
