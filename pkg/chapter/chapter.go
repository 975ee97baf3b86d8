// Package chapter defines the narrative records the compaction engine reads
// and produces, plus the chapter log interface it consumes.
//
// A Record is one chapter of history as written. A Compacted record has the
// same eight text fields plus the inclusive chapter range it covers and how
// many source records were folded into it.
package chapter

import "fmt"

// Fields holds the eight narrative text fields shared by chapter records and
// compacted records.
type Fields struct {
	Title          string `json:"title"`
	Summary        string `json:"summary"`
	PlotPoint      string `json:"plot_point"`
	KeyEvents      string `json:"key_events"`
	CharacterFocus string `json:"character_focus"`
	Setting        string `json:"setting"`
	Mood           string `json:"mood"`
	Themes         string `json:"themes"`
}

// FieldNames lists the JSON names of Fields in declaration order.
var FieldNames = []string{
	"title",
	"summary",
	"plot_point",
	"key_events",
	"character_focus",
	"setting",
	"mood",
	"themes",
}

// Map returns the fields keyed by their JSON names.
func (f Fields) Map() map[string]string {
	return map[string]string{
		"title":           f.Title,
		"summary":         f.Summary,
		"plot_point":      f.PlotPoint,
		"key_events":      f.KeyEvents,
		"character_focus": f.CharacterFocus,
		"setting":         f.Setting,
		"mood":            f.Mood,
		"themes":          f.Themes,
	}
}

// FieldsFromMap builds Fields from a map keyed by JSON names. Unknown keys are
// ignored and missing keys are left empty.
func FieldsFromMap(m map[string]string) Fields {
	return Fields{
		Title:          m["title"],
		Summary:        m["summary"],
		PlotPoint:      m["plot_point"],
		KeyEvents:      m["key_events"],
		CharacterFocus: m["character_focus"],
		Setting:        m["setting"],
		Mood:           m["mood"],
		Themes:         m["themes"],
	}
}

// Record is one chapter of narrative history. Number is the ordering key and
// is not guaranteed unique within a log: rewrites share a number.
type Record struct {
	Number int `json:"chapter_number"`
	Fields
}

// Range is an inclusive span of chapter numbers.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Contains reports whether n falls inside the range.
func (r Range) Contains(n int) bool {
	return n >= r.Start && n <= r.End
}

// Compacted is a window of one or more records folded into a single record.
// When SourceCount is 1 the fields are a verbatim copy of the sole source.
type Compacted struct {
	Fields
	Range       Range `json:"chapter_range"`
	SourceCount int   `json:"source_count"`
}

// FromRecord wraps a single record as a trivial compacted record.
func FromRecord(r Record) Compacted {
	return Compacted{
		Fields:      r.Fields,
		Range:       Range{Start: r.Number, End: r.Number},
		SourceCount: 1,
	}
}

// Trivial reports whether the record stands for exactly one chapter.
func (c Compacted) Trivial() bool {
	return c.SourceCount <= 1
}
