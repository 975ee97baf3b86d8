// Package initcmder provides the init command for initializing a local
// .dragon directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/pkg/config"
)

const dirName = ".dragon"

const initLongDesc string = `Initialize a new .dragon/ directory in the current working directory.

Creates a local .dragon/ directory that takes precedence over ~/.dragon/
for configuration and the default SQLite database, and writes a config.toml
with default values. Pass --preset to point the summarizer at a provider.

Examples:
  dragon init
  dragon init --preset anthropic`

const initShortDesc string = "Initialize a local .dragon/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Summarizer preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(w io.Writer, preset string) error {
	cfg := config.NewDefaultConfig()
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .dragon directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil && preset == "":
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("reading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "Initialized .dragon directory: %s\n", dir)
	return nil
}
