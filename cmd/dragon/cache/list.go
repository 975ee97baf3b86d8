package cachecmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/cmd/dragon/stack"
	"github.com/bochendong/dragon-continue/pkg/cliui"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

const listShortDesc string = "List cached merge summaries"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	stack.AddFlags(cmd, stack.StorageFlags...)

	return cmd
}

func printEntries(w io.Writer, entries []*mergecache.Entry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("Merge cache is empty."))
		return
	}

	fmt.Fprintln(w)
	for _, e := range entries {
		fmt.Fprintf(w, "  %s  %s  %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("ch %4d  x%d", e.Observation, e.MergeFactor)),
			cliui.ValueStyle.Render(fmt.Sprintf("%d layers, %d chars", e.LayerCount, e.TextLength)),
			cliui.DimStyle.Render(e.CreatedAt.Local().Format("2006-01-02 15:04")),
		)
	}
	fmt.Fprintln(w)
}
