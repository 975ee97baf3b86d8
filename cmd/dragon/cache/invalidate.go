package cachecmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/cmd/dragon/stack"
)

const invalidateShortDesc string = "Delete a cached merge summary"

func newInvalidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate <chapter> <factor>",
		Short: invalidateShortDesc,
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

			if err := store.Delete(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %s\n", key)
			return nil
		},
	}

	stack.AddFlags(cmd, stack.StorageFlags...)

	return cmd
}
