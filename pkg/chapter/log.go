package chapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotFound is returned when no chapter exists for a number.
	ErrNotFound = errors.New("chapter not found")

	// ErrNotAscending is returned when a sequence handed to the engine is not
	// strictly ascending by chapter number.
	ErrNotAscending = errors.New("chapters not strictly ascending")
)

// Log is the read side of the chapter store. Implementations return records
// ordered ascending by number and may hold several records per number.
type Log interface {
	// GetChapter returns the canonical (first stored) record for a number.
	GetChapter(ctx context.Context, number int) (*Record, error)

	// ChaptersByNumber returns every record stored under a number.
	ChaptersByNumber(ctx context.Context, number int) ([]Record, error)

	// AllChapters returns every record ascending by number.
	AllChapters(ctx context.Context) ([]Record, error)
}

// Writer appends records to a chapter store.
type Writer interface {
	AddChapter(ctx context.Context, record Record) error
}

// Canonicalize resolves duplicates to one record per chapter number. The
// input order is preserved within a number so the first occurrence wins, and
// the result is sorted ascending. The input slice is not modified.
func Canonicalize(records []Record) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Number < sorted[j].Number
	})

	out := make([]Record, 0, len(sorted))
	for i, r := range sorted {
		if i > 0 && sorted[i-1].Number == r.Number {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ValidateSequence checks that records are strictly ascending by number.
func ValidateSequence(records []Record) error {
	for i := 1; i < len(records); i++ {
		if records[i].Number <= records[i-1].Number {
			return fmt.Errorf("%w: chapter %d follows chapter %d",
				ErrNotAscending, records[i].Number, records[i-1].Number)
		}
	}
	return nil
}

// UpTo returns the prefix of an ascending sequence whose numbers are at most
// limit.
func UpTo(records []Record, limit int) []Record {
	idx := sort.Search(len(records), func(i int) bool {
		return records[i].Number > limit
	})
	return records[:idx]
}
