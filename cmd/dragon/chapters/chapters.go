// Package chapterscmder provides the chapters command for loading and
// inspecting the chapter log.
package chapterscmder

import (
	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/cmd/dragon/stack"
	"github.com/bochendong/dragon-continue/pkg/config"
)

const chaptersLongDesc string = `Manage the chapter log that compaction reads from.

Chapters are stored in the SQLite database resolved from --sqlite, the
DRAGON_SQLITE environment variable, or the .dragon/ directory. Several records
may share a chapter number; compaction uses the first one stored.

Examples:
  dragon chapters import story.json
  dragon chapters list`

const chaptersShortDesc string = "Manage the chapter log"

func NewChaptersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapters",
		Short: chaptersShortDesc,
		Long:  chaptersLongDesc,
	}

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// The chapter log is always SQLite.
var chapterFlags = []string{config.FlagSQLite}

func openLog(cmd *cobra.Command) (stack.ChapterStore, error) {
	settings, err := stack.Load(cmd, chapterFlags...)
	if err != nil {
		return nil, err
	}
	return stack.OpenChapters(settings, stack.Logger(cmd))
}
