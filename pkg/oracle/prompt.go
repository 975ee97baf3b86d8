package oracle

import (
	"fmt"
	"strings"

	"github.com/bochendong/dragon-continue/pkg/chapter"
)

// SystemPrompt frames the model as a plot analyst for providers that accept a
// separate system message.
const SystemPrompt = "You are a professional fiction plot analyst. You merge consecutive chapter " +
	"outlines into one outline node that lets a writer instantly recall what happened. " +
	"Always answer with a single valid JSON object and nothing else."

const promptInstructions = `Merge the following consecutive chapters into ONE outline node.

Return ONLY valid JSON with exactly these string fields:

{
  "title": "merged title naming concrete people, places or events",
  "summary": "merged summary with concrete names, places, events and outcomes",
  "plot_point": "the core plot development of this stretch",
  "key_events": "key events in order, joined with →",
  "character_focus": "main characters and what they did, separated by ，",
  "setting": "concrete settings in order, joined with →",
  "mood": "emotional tone, separated by 、",
  "themes": "core themes, separated by 、"
}

Rules:
1. Be specific: name who did what, where, and with what result. Avoid abstract words like "fate" or "destiny".
2. Keep events in chronological order.
3. Write in the same language as the chapters.

Chapters:
`

// BuildPrompt renders the merge prompt for a window of records.
func BuildPrompt(records []chapter.Record) string {
	var b strings.Builder
	b.WriteString(promptInstructions)

	for i, r := range records {
		fmt.Fprintf(&b, "\nChapter %d (#%d):\n", i+1, r.Number)
		writeField(&b, "title", r.Title)
		writeField(&b, "summary", r.Summary)
		writeField(&b, "plot_point", r.PlotPoint)
		writeField(&b, "key_events", r.KeyEvents)
		writeField(&b, "character_focus", r.CharacterFocus)
		writeField(&b, "setting", r.Setting)
		writeField(&b, "mood", r.Mood)
		writeField(&b, "themes", r.Themes)
	}

	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		value = "(none)"
	}
	fmt.Fprintf(b, "- %s: %s\n", name, value)
}
