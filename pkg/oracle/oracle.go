// Package oracle adapts an external text-generation service into a chapter
// summarizer. An Oracle receives an ordered batch of chapter records and
// returns one validated set of narrative fields, or an error.
//
// Oracle errors are classified with the sentinels below so callers can tell a
// missing oracle from a failed call from an unusable reply. The compaction
// engine treats all three the same way: it falls back to its deterministic
// compactor.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/bochendong/dragon-continue/pkg/chapter"
)

var (
	// ErrUnavailable indicates no oracle is configured.
	ErrUnavailable = errors.New("oracle unavailable")

	// ErrCallFailed indicates the oracle call itself failed (transport error,
	// timeout, non-200 status).
	ErrCallFailed = errors.New("oracle call failed")

	// ErrInvalidResponse indicates the oracle replied but the payload could
	// not be parsed or was missing required fields.
	ErrInvalidResponse = errors.New("oracle response invalid")
)

// Oracle compacts an ordered batch of chapter records into one set of fields.
type Oracle interface {
	Summarize(ctx context.Context, records []chapter.Record) (chapter.Fields, error)
}

// CallFunc is the signature for a single LLM inference call.
type CallFunc func(ctx context.Context, prompt string) (string, error)

// LLM is an Oracle backed by a prompt-in, text-out inference call.
type LLM struct {
	call CallFunc
}

// NewLLM creates an LLM oracle around call.
func NewLLM(call CallFunc) *LLM {
	return &LLM{call: call}
}

// Summarize sends every record's full field set to the model and validates
// the reply. It makes exactly one attempt.
func (o *LLM) Summarize(ctx context.Context, records []chapter.Record) (chapter.Fields, error) {
	if o == nil || o.call == nil {
		return chapter.Fields{}, ErrUnavailable
	}

	response, err := o.call(ctx, BuildPrompt(records))
	if err != nil {
		return chapter.Fields{}, fmt.Errorf("%w: %w", ErrCallFailed, err)
	}

	return ParseResponse(response)
}

// Func adapts a plain function into an Oracle.
type Func func(ctx context.Context, records []chapter.Record) (chapter.Fields, error)

// Summarize calls f.
func (f Func) Summarize(ctx context.Context, records []chapter.Record) (chapter.Fields, error) {
	return f(ctx, records)
}
