package compaction

// Anchor maps a keyword found in window summaries to a title label.
type Anchor struct {
	Keyword string `toml:"keyword" json:"keyword"`
	Label   string `toml:"label" json:"label"`
}

// ThemeGroup names a theme and the keywords that signal it.
type ThemeGroup struct {
	Name     string   `toml:"name" json:"name"`
	Keywords []string `toml:"keywords" json:"keywords"`
}

// Heuristics are the keyword tables the fallback compactor matches against.
// Anchors are checked in order and the first hit names the window.
type Heuristics struct {
	Anchors    []Anchor     `toml:"anchors" json:"anchors"`
	Themes     []ThemeGroup `toml:"themes" json:"themes"`
	Characters []string     `toml:"characters" json:"characters"`

	// ExcerptRunes bounds the first and last summary excerpts.
	ExcerptRunes int `toml:"excerpt_runes" json:"excerpt_runes"`
}

const defaultExcerptRunes = 100

// DefaultHeuristics returns the tables tuned for the Dragon Raja continuation.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		Anchors: []Anchor{
			{Keyword: "龙王", Label: "龙王篇章"},
			{Keyword: "学院", Label: "学院篇章"},
			{Keyword: "血统", Label: "血统觉醒"},
			{Keyword: "任务", Label: "任务篇章"},
		},
		Themes: []ThemeGroup{
			{Name: "成长", Keywords: []string{"成长", "发展", "变化", "成熟"}},
			{Name: "友谊", Keywords: []string{"友谊", "朋友", "关系", "合作"}},
			{Name: "战斗", Keywords: []string{"战斗", "对决", "攻击", "击败"}},
			{Name: "探索", Keywords: []string{"探索", "发现", "寻找", "调查"}},
			{Name: "危机", Keywords: []string{"危机", "危险", "威胁", "困境"}},
			{Name: "爱情", Keywords: []string{"爱情", "感情", "喜欢", "心动"}},
		},
		Characters:   []string{"路明非", "诺诺", "恺撒", "楚子航", "昂热", "龙王", "叶胜", "亚纪"},
		ExcerptRunes: defaultExcerptRunes,
	}
}

// Merge overlays non-empty tables from o onto h.
func (h Heuristics) Merge(o Heuristics) Heuristics {
	if len(o.Anchors) > 0 {
		h.Anchors = o.Anchors
	}
	if len(o.Themes) > 0 {
		h.Themes = o.Themes
	}
	if len(o.Characters) > 0 {
		h.Characters = o.Characters
	}
	if o.ExcerptRunes > 0 {
		h.ExcerptRunes = o.ExcerptRunes
	}
	return h
}
