package compaction

import (
	"fmt"
	"strings"

	"github.com/bochendong/dragon-continue/pkg/chapter"
)

// Rendered is the flattened text of a view plus the metadata kept alongside
// it in the merge cache.
type Rendered struct {
	Text string

	// Titles lists the titles of every multi-chapter record in the order
	// they appear in Text.
	Titles []string

	// LayerCount is the number of compacted layers above the detail layer.
	LayerCount int
}

// Render flattens view into Markdown. Layers are emitted coarsest first so a
// reader sees the broad arc before the recent detail.
func Render(view *View) Rendered {
	var b strings.Builder
	titles := []string{}

	b.WriteString("# 分层情节大纲摘要\n\n")
	fmt.Fprintf(&b, "- 当前章节: 第%d章\n", view.Observation)
	fmt.Fprintf(&b, "- 总章节数: %d\n", view.TotalChapters)
	fmt.Fprintf(&b, "- 合并因子: %d\n", view.MergeFactor)

	for i := len(view.Layers) - 1; i >= 0; i-- {
		layer := view.Layers[i]
		coverage, ok := layer.Coverage()
		if !ok {
			continue
		}

		b.WriteString("\n")
		if layer.Index == 0 {
			fmt.Fprintf(&b, "## 第0层 · 最近章节详细内容 · 第%s章\n", coverage)
		} else {
			fmt.Fprintf(&b, "## 第%d层 · 每%d章合并 · 第%s章\n", layer.Index, layer.WindowSize, coverage)
		}

		for _, rec := range layer.Records {
			b.WriteString("\n")
			writeRecord(&b, rec, layer.Index == 0)
			if rec.SourceCount > 1 {
				titles = append(titles, rec.Title)
			}
		}
	}

	return Rendered{
		Text:       b.String(),
		Titles:     titles,
		LayerCount: view.CompactedLayers(),
	}
}

func writeRecord(b *strings.Builder, rec chapter.Compacted, detail bool) {
	fmt.Fprintf(b, "### 第%s章: %s\n\n", rec.Range, rec.Title)

	labels := [...]string{"合并摘要", "情节发展", "关键事件", "主要角色", "场景变化", "情感基调", "核心主题"}
	if detail {
		labels = [...]string{"摘要", "情节要点", "关键事件", "角色焦点", "场景设定", "氛围", "主题"}
	}
	values := [...]string{rec.Summary, rec.PlotPoint, rec.KeyEvents, rec.CharacterFocus, rec.Setting, rec.Mood, rec.Themes}

	for i, label := range labels {
		fmt.Fprintf(b, "- %s: %s\n", label, values[i])
	}
	if !detail {
		fmt.Fprintf(b, "- 包含章节数: %d\n", rec.SourceCount)
	}
}
