// Package mergecache memoizes rendered compaction views by observation
// chapter and merge factor.
//
// The key ignores the content of the chapter log. Editing or
// appending chapters at or below a cached observation point leaves the entry
// stale until it is invalidated or recomputed with force.
package mergecache

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

var (
	// ErrNotFound is returned by Store.Load on a miss.
	ErrNotFound = errors.New("merge summary not found")

	// ErrCacheWrite wraps a failure to persist a freshly computed entry.
	ErrCacheWrite = errors.New("merge cache write failed")
)

// Key identifies a cache entry.
type Key struct {
	Observation int `json:"observation_chapter"`
	MergeFactor int `json:"merge_factor"`
}

func (k Key) String() string {
	return fmt.Sprintf("chapter %d / factor %d", k.Observation, k.MergeFactor)
}

// Entry is one persisted rendering.
type Entry struct {
	Key
	Text       string    `json:"rendered_text"`
	TextLength int       `json:"text_length"`
	LayerCount int       `json:"layer_count"`
	Titles     []string  `json:"generated_titles"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEntry builds an entry for key, deriving TextLength from text.
func NewEntry(key Key, text string, layerCount int, titles []string) *Entry {
	if titles == nil {
		titles = []string{}
	}
	return &Entry{
		Key:        key,
		Text:       text,
		TextLength: utf8.RuneCountInString(text),
		LayerCount: layerCount,
		Titles:     titles,
		CreatedAt:  time.Now().UTC(),
	}
}

// Store persists entries with exact-key lookups and idempotent overwrite.
type Store interface {
	// Load returns the entry for key or ErrNotFound.
	Load(ctx context.Context, key Key) (*Entry, error)

	// Save writes entry, replacing any existing entry for the same key.
	Save(ctx context.Context, entry *Entry) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// List returns every entry ordered by observation chapter, then factor.
	List(ctx context.Context) ([]*Entry, error)

	// Close releases any resources.
	Close() error
}
