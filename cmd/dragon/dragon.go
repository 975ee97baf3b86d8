// Package dragoncmder
package dragoncmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/bochendong/dragon-continue/cmd/dragon/auth"
	cachecmder "github.com/bochendong/dragon-continue/cmd/dragon/cache"
	chapterscmder "github.com/bochendong/dragon-continue/cmd/dragon/chapters"
	compactcmder "github.com/bochendong/dragon-continue/cmd/dragon/compact"
	configcmder "github.com/bochendong/dragon-continue/cmd/dragon/config"
	initcmder "github.com/bochendong/dragon-continue/cmd/dragon/init"
	servecmder "github.com/bochendong/dragon-continue/cmd/dragon/serve"
	versioncmder "github.com/bochendong/dragon-continue/cmd/dragon/version"
)

const dragonLongDesc string = `Dragon keeps a long-running story's history small enough to continue.

Older chapters are folded into layered summaries while recent chapters stay
verbatim, so a generator can be handed the whole story at bounded length.

Get started:
  dragon init                     Create a local .dragon/ directory
  dragon chapters import f.json   Load chapters into the log
  dragon compact 120              Render the summary as of chapter 120
  dragon serve                    Run the HTTP and MCP API`

const dragonShortDesc string = "Dragon - layered story compaction"

func NewDragonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "dragon",
		Short:        dragonShortDesc,
		Long:         dragonLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .dragon/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(chapterscmder.NewChaptersCmd())
	cmd.AddCommand(compactcmder.NewCompactCmd())
	cmd.AddCommand(cachecmder.NewCacheCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
