package compaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bochendong/dragon-continue/pkg/chapter"
	"github.com/bochendong/dragon-continue/pkg/logger"
	"github.com/bochendong/dragon-continue/pkg/oracle"
)

// DefaultWindowTimeout bounds a single oracle attempt.
const DefaultWindowTimeout = 60 * time.Second

// WindowConfig configures a WindowCompactor.
type WindowConfig struct {
	// Oracle is optional. Without one every multi-record window uses the
	// fallback compactor.
	Oracle oracle.Oracle

	// Timeout bounds each oracle attempt. Zero means DefaultWindowTimeout.
	Timeout time.Duration

	// Heuristics overrides the fallback tables. Nil means DefaultHeuristics.
	Heuristics *Heuristics

	Observer Observer
}

// WindowCompactor folds one window of chapter records into a single
// compacted record. It tries the oracle once and falls back to the
// deterministic compactor on any oracle failure.
type WindowCompactor struct {
	oracle   oracle.Oracle
	fallback *Fallback
	timeout  time.Duration
	observer Observer
	logger   *slog.Logger
}

// NewWindowCompactor creates a window compactor.
func NewWindowCompactor(cfg WindowConfig, log *slog.Logger) *WindowCompactor {
	h := DefaultHeuristics()
	if cfg.Heuristics != nil {
		h = *cfg.Heuristics
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWindowTimeout
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &WindowCompactor{
		oracle:   cfg.Oracle,
		fallback: NewFallback(h),
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		logger:   log,
	}
}

// CompactWindow compacts records, which must be non-empty and strictly
// ascending. A single record is returned verbatim without consulting the
// oracle. Oracle failures never surface as errors.
func (w *WindowCompactor) CompactWindow(ctx context.Context, records []chapter.Record) (chapter.Compacted, error) {
	if len(records) == 0 {
		return chapter.Compacted{}, &Error{Op: "compact_window", Err: ErrEmptyWindow}
	}
	if err := chapter.ValidateSequence(records); err != nil {
		return chapter.Compacted{}, &Error{
			Op:    "compact_window",
			Range: windowRange(records),
			Err:   fmt.Errorf("%w: %w", ErrInvalidArgument, err),
		}
	}

	c, _ := w.compact(ctx, records)
	return c, nil
}

// compact does the work of CompactWindow on a window already known to be
// valid and reports which path produced the result.
func (w *WindowCompactor) compact(ctx context.Context, records []chapter.Record) (chapter.Compacted, Source) {
	start := time.Now()
	r := windowRange(records)

	if len(records) == 1 {
		w.observer.RecordWindow(SourceVerbatim, 1, time.Since(start))
		return chapter.FromRecord(records[0]), SourceVerbatim
	}

	fields, err := w.summarize(ctx, records)
	source := SourceOracle
	if err != nil {
		source = SourceFallback
		level := slog.LevelWarn
		if errors.Is(err, oracle.ErrUnavailable) {
			level = slog.LevelDebug
		}
		w.logger.Log(ctx, level, "oracle failed, using fallback",
			"range", r.String(),
			"size", len(records),
			"error", err,
		)
		fields = w.fallback.Compact(records)
	}

	w.observer.RecordWindow(source, len(records), time.Since(start))
	return chapter.Compacted{
		Fields:      fields,
		Range:       r,
		SourceCount: len(records),
	}, source
}

func (w *WindowCompactor) summarize(ctx context.Context, records []chapter.Record) (chapter.Fields, error) {
	if w.oracle == nil {
		return chapter.Fields{}, oracle.ErrUnavailable
	}

	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	return w.oracle.Summarize(callCtx, records)
}

func windowRange(records []chapter.Record) chapter.Range {
	r := chapter.Range{Start: records[0].Number, End: records[0].Number}
	for _, rec := range records[1:] {
		if rec.Number < r.Start {
			r.Start = rec.Number
		}
		if rec.Number > r.End {
			r.End = rec.Number
		}
	}
	return r
}
