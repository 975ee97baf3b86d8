package chapterscmder

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/cmd/dragon/stack"
	"github.com/bochendong/dragon-continue/pkg/chapter"
	"github.com/bochendong/dragon-continue/pkg/cliui"
	"github.com/bochendong/dragon-continue/pkg/utils"
)

const listLongDesc string = `List the chapters in the log.

Shows one line per stored record, ascending by chapter number. Rewrites of a
chapter appear under the same number; the first is the one compaction uses.`

const listShortDesc string = "List chapters in the log"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := openLog(cmd)
			if err != nil {
				return err
			}
			defer log.Close()

			records, err := log.AllChapters(cmd.Context())
			if err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	stack.AddFlags(cmd, chapterFlags...)

	return cmd
}

func printRecords(w io.Writer, records []chapter.Record) {
	if len(records) == 0 {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No chapters stored."))
		return
	}

	fmt.Fprintln(w)
	for i, r := range records {
		marker := ""
		if i > 0 && records[i-1].Number == r.Number {
			marker = cliui.DimStyle.Render(" (rewrite)")
		}
		fmt.Fprintf(w, "  %s  %s%s  %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("%4s", strconv.Itoa(r.Number))),
			cliui.ValueStyle.Render(r.Title),
			marker,
			cliui.DimStyle.Render(utils.Truncate(r.Summary, 30)),
		)
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d records", len(records))))
}
