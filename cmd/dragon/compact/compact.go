// Package compactcmder provides the compact command, which renders the
// layered plot summary as seen from one chapter.
package compactcmder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/cmd/dragon/stack"
	"github.com/bochendong/dragon-continue/pkg/cliui"
	"github.com/bochendong/dragon-continue/pkg/compaction"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

type compactCommander struct {
	force  bool
	pretty bool
	asJSON bool
}

const compactLongDesc string = `Render the layered plot summary for the story up to a chapter.

Older chapters are folded into progressively coarser windows, while the most
recent chapters stay at full detail. Renderings are cached per observation
chapter and merge factor; --force recomputes and overwrites the cache.

Examples:
  dragon compact 120
  dragon compact 120 --merge-factor 4 --detail-window 5
  dragon compact 120 --force --pretty
  dragon compact 120 --json`

const compactShortDesc string = "Render the layered summary up to a chapter"

func NewCompactCmd() *cobra.Command {
	cmder := &compactCommander{}
	keys := append(append([]string{}, stack.StorageFlags...), stack.CompactionFlags...)

	cmd := &cobra.Command{
		Use:   "compact <chapter>",
		Short: compactShortDesc,
		Long:  compactLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			observation, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid chapter %q: %w", args[0], err)
			}

			settings, err := stack.Load(cmd, keys...)
			if err != nil {
				return err
			}
			return cmder.run(cmd, settings, observation)
		},
	}

	stack.AddFlags(cmd, keys...)
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Recompute even when a cached rendering exists")
	cmd.Flags().BoolVar(&cmder.pretty, "pretty", false, "Render the summary as styled markdown")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the cache entry as JSON")
	cmd.MarkFlagsMutuallyExclusive("pretty", "json")

	return cmd
}

func (c *compactCommander) run(cmd *cobra.Command, settings stack.Settings, observation int) error {
	log := stack.Logger(cmd)

	st, err := stack.New(cmd.Context(), settings, log)
	if err != nil {
		return err
	}
	defer st.Close()

	req := compaction.Request{
		Observation:  observation,
		MergeFactor:  settings.MergeFactor,
		DetailWindow: settings.DetailWindow,
		Force:        c.force,
	}

	var (
		resp     compaction.Response
		cacheErr error
	)
	msg := fmt.Sprintf("Compacting chapters 1-%d (factor %d)", observation, settings.MergeFactor)
	err = cliui.Step(cmd.ErrOrStderr(), msg, func() (string, error) {
		var serr error
		resp, serr = st.Service.Summary(cmd.Context(), req)
		if resp.Entry != nil && errors.Is(serr, mergecache.ErrCacheWrite) {
			cacheErr = serr
			serr = nil
		}
		if serr != nil {
			return "", serr
		}
		if resp.Hit {
			return "cache hit", nil
		}
		return fmt.Sprintf("%d layers", resp.Entry.LayerCount), nil
	})
	if err != nil {
		return err
	}
	if cacheErr != nil {
		log.Warn("summary rendered but not cached", "error", cacheErr)
	}
	if resp.Hit {
		log.Debug("served from merge cache", "key", resp.Entry.Key.String())
	}

	return c.print(cmd.OutOrStdout(), resp)
}

func (c *compactCommander) print(w io.Writer, resp compaction.Response) error {
	switch {
	case c.asJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(resp.Entry)

	case c.pretty:
		out, err := cliui.RenderMarkdown(resp.Entry.Text, 100)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err

	default:
		_, err := fmt.Fprintln(w, resp.Entry.Text)
		return err
	}
}
