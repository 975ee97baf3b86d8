package compaction

import "time"

// Source records how a window was compacted.
type Source string

const (
	SourceVerbatim Source = "verbatim"
	SourceOracle   Source = "oracle"
	SourceMemo     Source = "memo"
	SourceFallback Source = "fallback"
)

// Observer captures telemetry for window and view compaction.
type Observer interface {
	RecordWindow(source Source, size int, duration time.Duration)
	RecordCompaction(layers int, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) RecordWindow(Source, int, time.Duration)    {}
func (nopObserver) RecordCompaction(int, time.Duration, error) {}
