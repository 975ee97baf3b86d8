package cachecmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/cmd/dragon/stack"
	"github.com/bochendong/dragon-continue/pkg/cliui"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

const showShortDesc string = "Print a cached merge summary"

func newShowCmd() *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "show <chapter> <factor>",
		Short: showShortDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args)
			if err != nil {
				return err
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			entry, err := store.Load(cmd.Context(), key)
			if errors.Is(err, mergecache.ErrNotFound) {
				return fmt.Errorf("no cached summary for %s", key)
			}
			if err != nil {
				return err
			}

			text := entry.Text
			if pretty {
				if text, err = cliui.RenderMarkdown(entry.Text, 100); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	stack.AddFlags(cmd, stack.StorageFlags...)
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Render the summary as styled markdown")

	return cmd
}
