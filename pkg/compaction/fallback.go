package compaction

import (
	"fmt"
	"strings"

	"github.com/bochendong/dragon-continue/pkg/chapter"
)

const (
	sequenceSep  = " → "
	characterSep = "，"
	tokenSep     = "、"
	untitled     = "未知"
)

// Fallback compacts a window without any external service. Output depends
// only on the input records and the heuristic tables, so the same window
// always yields byte-identical fields.
type Fallback struct {
	h Heuristics
}

// NewFallback creates a fallback compactor over h.
func NewFallback(h Heuristics) *Fallback {
	if h.ExcerptRunes <= 0 {
		h.ExcerptRunes = defaultExcerptRunes
	}
	return &Fallback{h: h}
}

// Compact folds records into one set of fields. It expects at least one
// record.
func (f *Fallback) Compact(records []chapter.Record) chapter.Fields {
	summaries := make([]string, len(records))
	for i, r := range records {
		summaries[i] = r.Summary
	}
	corpus := strings.Join(summaries, " ")

	return chapter.Fields{
		Title:          f.title(records, corpus),
		Summary:        f.summary(records, corpus),
		PlotPoint:      joinNonEmpty(records, func(r chapter.Record) string { return r.PlotPoint }),
		KeyEvents:      joinNonEmpty(records, func(r chapter.Record) string { return r.KeyEvents }),
		CharacterFocus: unionTokens(records, func(r chapter.Record) string { return r.CharacterFocus }, isCharacterSep, characterSep),
		Setting:        joinNonEmpty(records, func(r chapter.Record) string { return r.Setting }),
		Mood:           unionTokens(records, func(r chapter.Record) string { return r.Mood }, isTokenSep, tokenSep),
		Themes:         unionTokens(records, func(r chapter.Record) string { return r.Themes }, isTokenSep, tokenSep),
	}
}

func (f *Fallback) title(records []chapter.Record, corpus string) string {
	for _, a := range f.h.Anchors {
		if a.Keyword != "" && strings.Contains(corpus, a.Keyword) {
			return fmt.Sprintf("%s（第%d章合并）", a.Label, len(records))
		}
	}

	first := records[0].Title
	last := records[len(records)-1].Title
	if first == "" {
		first = untitled
	}
	if last == "" {
		last = untitled
	}
	return first + sequenceSep + last
}

func (f *Fallback) summary(records []chapter.Record, corpus string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "【%d个章节的合并摘要】", len(records))

	if themes := f.matchThemes(corpus); len(themes) > 0 {
		fmt.Fprintf(&b, " 核心围绕%s展开，", strings.Join(themes, ", "))
	}
	if names := f.matchCharacters(corpus); len(names) > 0 {
		fmt.Fprintf(&b, " 主要角色%s经历了重要发展，", strings.Join(names, ", "))
	}

	if len(records) >= 2 {
		start := truncateRunes(records[0].Summary, f.h.ExcerptRunes)
		end := truncateRunes(records[len(records)-1].Summary, f.h.ExcerptRunes)
		fmt.Fprintf(&b, " 从%s...发展到%s...", start, end)
	}

	return b.String()
}

func (f *Fallback) matchThemes(corpus string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, g := range f.h.Themes {
		if seen[g.Name] {
			continue
		}
		for _, kw := range g.Keywords {
			if kw != "" && strings.Contains(corpus, kw) {
				out = append(out, g.Name)
				seen[g.Name] = true
				break
			}
		}
	}
	return out
}

func (f *Fallback) matchCharacters(corpus string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range f.h.Characters {
		if name == "" || seen[name] {
			continue
		}
		if strings.Contains(corpus, name) {
			out = append(out, name)
			seen[name] = true
		}
	}
	return out
}

func joinNonEmpty(records []chapter.Record, field func(chapter.Record) string) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		if v := field(r); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sequenceSep)
}

func unionTokens(records []chapter.Record, field func(chapter.Record) string, split func(rune) bool, sep string) string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, tok := range strings.FieldsFunc(field(r), split) {
			tok = strings.TrimSpace(tok)
			if tok == "" || seen[tok] {
				continue
			}
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return strings.Join(out, sep)
}

func isCharacterSep(r rune) bool {
	return r == '，' || r == ','
}

func isTokenSep(r rune) bool {
	return r == '、'
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
