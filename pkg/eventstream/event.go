package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCompactionRendered is emitted after a fresh view is rendered
	// and committed to the merge cache.
	EventTypeCompactionRendered = "dragon.compaction.rendered"
)

// CompactionRenderedEvent is a transport-neutral event payload for a freshly
// rendered compaction.
type CompactionRenderedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Request       CompactionMeta `json:"request"`
	Result        RenderMeta     `json:"result"`
}

// CompactionMeta captures what was asked for.
type CompactionMeta struct {
	ObservationChapter int  `json:"observation_chapter"`
	MergeFactor        int  `json:"merge_factor"`
	DetailWindow       int  `json:"detail_window"`
	Forced             bool `json:"forced"`
}

// RenderMeta captures what was produced.
type RenderMeta struct {
	TotalChapters int      `json:"total_chapters"`
	LayerCount    int      `json:"layer_count"`
	TextLength    int      `json:"text_length"`
	Titles        []string `json:"generated_titles"`
	DurationMs    int64    `json:"duration_ms"`
	CacheWriteErr string   `json:"cache_write_error,omitempty"`
}

// NewCompactionRenderedEvent stamps a new event with a fresh ID and time.
func NewCompactionRenderedEvent(req CompactionMeta, res RenderMeta) *CompactionRenderedEvent {
	return &CompactionRenderedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCompactionRendered,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Request:       req,
		Result:        res,
	}
}
