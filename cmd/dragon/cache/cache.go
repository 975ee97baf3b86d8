// Package cachecmder provides the cache command for inspecting and
// invalidating stored merge summaries.
package cachecmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/cmd/dragon/stack"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

const cacheLongDesc string = `Inspect and invalidate cached merge summaries.

Each entry is keyed by observation chapter and merge factor. Entries are not
refreshed when the chapter log changes; invalidate them, or run
"dragon compact --force", after rewriting chapters.

Examples:
  dragon cache list
  dragon cache show 120 3
  dragon cache invalidate 120 3`

const cacheShortDesc string = "Inspect the merge cache"

func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: cacheShortDesc,
		Long:  cacheLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newInvalidateCmd())

	return cmd
}

func openStore(cmd *cobra.Command) (mergecache.Store, error) {
	settings, err := stack.Load(cmd, stack.StorageFlags...)
	if err != nil {
		return nil, err
	}
	return stack.OpenStore(cmd.Context(), settings, stack.Logger(cmd))
}

func parseKey(args []string) (mergecache.Key, error) {
	observation, err := strconv.Atoi(args[0])
	if err != nil {
		return mergecache.Key{}, fmt.Errorf("invalid chapter %q: %w", args[0], err)
	}
	factor, err := strconv.Atoi(args[1])
	if err != nil {
		return mergecache.Key{}, fmt.Errorf("invalid merge factor %q: %w", args[1], err)
	}
	return mergecache.Key{Observation: observation, MergeFactor: factor}, nil
}
