// Package versioncmder prints build information.
package versioncmder

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/pkg/utils"
)

type VersionCommander struct{}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	return cmd
}

func (c *VersionCommander) run(w io.Writer) error {
	_, err := io.WriteString(w, utils.BuildSummary())
	return err
}
