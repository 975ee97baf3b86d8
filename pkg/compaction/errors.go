package compaction

import (
	"errors"
	"fmt"

	"github.com/bochendong/dragon-continue/pkg/chapter"
)

var (
	// ErrInvalidArgument indicates a precondition violation such as a merge
	// factor below 2 or a chapter sequence that is not strictly ascending.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyWindow is returned when a window with no records is compacted.
	ErrEmptyWindow = errors.New("empty window")
)

// Error wraps a compaction failure with the operation and the chapter range
// it was working on.
type Error struct {
	Op    string
	Range chapter.Range
	Err   error
}

func (e *Error) Error() string {
	if e.Range == (chapter.Range{}) {
		return fmt.Sprintf("compaction %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("compaction %s [%s]: %v", e.Op, e.Range, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
