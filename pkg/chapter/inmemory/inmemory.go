// Package inmemory provides a map-backed chapter log for tests and ephemeral
// runs.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/bochendong/dragon-continue/pkg/chapter"
)

// Log implements chapter.Log and chapter.Writer in memory.
type Log struct {
	mu sync.RWMutex

	// records holds every record in insertion order
	records []chapter.Record
}

// NewLog creates an in-memory log seeded with records.
func NewLog(records ...chapter.Record) *Log {
	l := &Log{}
	l.records = append(l.records, records...)
	return l
}

// AddChapter appends a record. Duplicate numbers are kept.
func (l *Log) AddChapter(_ context.Context, record chapter.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, record)
	return nil
}

// GetChapter returns the first record stored under number.
func (l *Log) GetChapter(ctx context.Context, number int) (*chapter.Record, error) {
	records, err := l.ChaptersByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, chapter.ErrNotFound
	}
	return &records[0], nil
}

// ChaptersByNumber returns all records stored under number in insertion order.
func (l *Log) ChaptersByNumber(_ context.Context, number int) ([]chapter.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []chapter.Record
	for _, r := range l.records {
		if r.Number == number {
			out = append(out, r)
		}
	}
	return out, nil
}

// AllChapters returns every record ascending by number, insertion order kept
// within a number.
func (l *Log) AllChapters(_ context.Context) ([]chapter.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]chapter.Record, len(l.records))
	copy(out, l.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Number < out[j].Number
	})
	return out, nil
}
