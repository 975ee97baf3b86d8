package compaction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bochendong/dragon-continue/pkg/chapter"
	"github.com/bochendong/dragon-continue/pkg/logger"
)

const (
	// DefaultMergeFactor is the window growth base used when none is given.
	DefaultMergeFactor = 3

	// DefaultDetailWindow is the number of recent chapters kept verbatim.
	DefaultDetailWindow = 3
)

// Options parameterize one compaction.
type Options struct {
	Observation  int
	MergeFactor  int
	DetailWindow int
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Concurrency is the number of windows compacted at once. Values below 1
	// mean sequential.
	Concurrency int

	// WindowCacheSize enables an in-process memo of oracle results keyed by
	// window content. Zero disables it.
	WindowCacheSize int

	Observer Observer
}

// Engine builds multi-resolution views of a chapter sequence.
type Engine struct {
	windows     *WindowCompactor
	concurrency int
	memo        *lru.Cache[string, chapter.Fields]
	observer    Observer
	logger      *slog.Logger
}

// NewEngine creates an engine that compacts windows with windows.
func NewEngine(windows *WindowCompactor, cfg EngineConfig, log *slog.Logger) (*Engine, error) {
	if windows == nil {
		return nil, fmt.Errorf("%w: nil window compactor", ErrInvalidArgument)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if log == nil {
		log = logger.Nop()
	}

	e := &Engine{
		windows:     windows,
		concurrency: cfg.Concurrency,
		observer:    cfg.Observer,
		logger:      log,
	}

	if cfg.WindowCacheSize > 0 {
		memo, err := lru.New[string, chapter.Fields](cfg.WindowCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create window cache: %w", err)
		}
		e.memo = memo
	}

	return e, nil
}

// LayerCount returns how many compacted layers a view over total chapters
// gets, of which older lie outside the detail window. It counts the ceiling
// divisions by the factor needed to bring total down to at most the factor,
// with at least one layer whenever older is non-empty.
func LayerCount(total, older, mergeFactor int) int {
	if older <= 0 {
		return 0
	}
	layers := 0
	for remaining := total; remaining > mergeFactor; layers++ {
		remaining = (remaining + mergeFactor - 1) / mergeFactor
	}
	return max(layers, 1)
}

type windowJob struct {
	layer   int
	index   int
	records []chapter.Record
}

// Compact builds the view for chapters, which must be strictly ascending with
// one canonical record per number. Every layer windows the full set of older
// chapters independently, so layer l never depends on layer l-1.
//
// Oracle failures fall back per window and are not returned. Cancelling ctx
// abandons the view and returns the context error.
func (e *Engine) Compact(ctx context.Context, chapters []chapter.Record, opts Options) (view *View, err error) {
	start := time.Now()
	defer func() {
		layers := 0
		if view != nil {
			layers = view.CompactedLayers()
		}
		e.observer.RecordCompaction(layers, time.Since(start), err)
	}()

	if opts.MergeFactor < 2 {
		return nil, fmt.Errorf("%w: merge factor %d is below 2", ErrInvalidArgument, opts.MergeFactor)
	}
	if opts.DetailWindow < 0 {
		return nil, fmt.Errorf("%w: detail window %d is negative", ErrInvalidArgument, opts.DetailWindow)
	}
	if err := chapter.ValidateSequence(chapters); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	split := max(len(chapters)-opts.DetailWindow, 0)
	older, recent := chapters[:split], chapters[split:]

	detail := Layer{Index: 0, WindowSize: 1, Records: make([]chapter.Compacted, len(recent))}
	for i, r := range recent {
		detail.Records[i] = chapter.FromRecord(r)
	}

	view = &View{
		Observation:   opts.Observation,
		MergeFactor:   opts.MergeFactor,
		TotalChapters: len(chapters),
		Layers:        []Layer{detail},
	}

	var jobs []windowJob
	size := 1
	for l := 1; l <= LayerCount(len(chapters), len(older), opts.MergeFactor); l++ {
		size *= opts.MergeFactor
		layer := Layer{Index: l, WindowSize: size}
		for lo := 0; lo < len(older); lo += size {
			hi := min(lo+size, len(older))
			jobs = append(jobs, windowJob{layer: l, index: len(layer.Records), records: older[lo:hi]})
			layer.Records = append(layer.Records, chapter.Compacted{})
		}
		view.Layers = append(view.Layers, layer)
	}

	e.logger.Debug("compacting",
		"observation", opts.Observation,
		"chapters", len(chapters),
		"older", len(older),
		"layers", view.CompactedLayers(),
		"windows", len(jobs),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			view.Layers[job.layer].Records[job.index] = e.compactWindow(gctx, job.records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return view, nil
}

// compactWindow consults the memo before the window compactor and stores
// oracle results only, so a fallback never hides a later oracle success.
func (e *Engine) compactWindow(ctx context.Context, records []chapter.Record) chapter.Compacted {
	if e.memo == nil || len(records) == 1 {
		c, _ := e.windows.compact(ctx, records)
		return c
	}

	key := windowKey(records)
	if fields, ok := e.memo.Get(key); ok {
		e.observer.RecordWindow(SourceMemo, len(records), 0)
		return chapter.Compacted{
			Fields:      fields,
			Range:       windowRange(records),
			SourceCount: len(records),
		}
	}

	c, source := e.windows.compact(ctx, records)
	if source == SourceOracle {
		e.memo.Add(key, c.Fields)
	}
	return c
}

// windowKey hashes the full content of a window. Fields are NUL-separated so
// shifting text between adjacent fields changes the key.
func windowKey(records []chapter.Record) string {
	h := sha256.New()
	for _, r := range records {
		fmt.Fprintf(h, "%d\x00", r.Number)
		m := r.Map()
		for _, name := range chapter.FieldNames {
			_, _ = io.WriteString(h, m[name])
			_, _ = h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
