package chapterscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/cmd/dragon/stack"
	"github.com/bochendong/dragon-continue/pkg/chapter"
)

const importLongDesc string = `Import chapters from a JSON file.

The file holds an array of chapter objects:

  [
    {"chapter_number": 1, "title": "...", "summary": "...", "plot_point": "...",
     "key_events": "...", "character_focus": "...", "setting": "...",
     "mood": "...", "themes": "..."}
  ]

Records are appended in file order. Pass "-" to read from stdin.

Examples:
  dragon chapters import story.json
  cat story.json | dragon chapters import -`

const importShortDesc string = "Import chapters from a JSON file"

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: importShortDesc,
		Long:  importLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			log, err := openLog(cmd)
			if err != nil {
				return err
			}
			defer log.Close()

			if err := importRecords(cmd.Context(), log, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d chapters\n", len(records))
			return nil
		},
	}

	stack.AddFlags(cmd, chapterFlags...)

	return cmd
}

func readRecords(stdin io.Reader, path string) ([]chapter.Record, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening chapters file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var records []chapter.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding chapters: %w", err)
	}

	for i, rec := range records {
		if rec.Number < 1 {
			return nil, fmt.Errorf("record %d: chapter_number must be at least 1, got %d", i, rec.Number)
		}
	}
	return records, nil
}

func importRecords(ctx context.Context, w chapter.Writer, records []chapter.Record) error {
	for _, rec := range records {
		if err := w.AddChapter(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
