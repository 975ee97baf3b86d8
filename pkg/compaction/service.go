package compaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bochendong/dragon-continue/pkg/chapter"
	"github.com/bochendong/dragon-continue/pkg/eventstream"
	"github.com/bochendong/dragon-continue/pkg/logger"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

// Request asks for the rendered history as seen from one chapter.
type Request struct {
	Observation  int
	MergeFactor  int
	DetailWindow int

	// Force recomputes and overwrites any cached rendering.
	Force bool
}

// Response is the rendered history and whether it came from the cache.
type Response struct {
	Entry *mergecache.Entry
	Hit   bool
}

// Service answers compaction requests: it reads the chapter log, builds and
// renders a view on a cache miss, and memoizes the result.
type Service struct {
	log       chapter.Log
	engine    *Engine
	cache     *mergecache.Cache
	publisher eventstream.Publisher
	logger    *slog.Logger
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Log       chapter.Log
	Engine    *Engine
	Cache     *mergecache.Cache
	Publisher eventstream.Publisher // optional
	Logger    *slog.Logger          // optional
}

// NewService creates a compaction service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Log == nil {
		return nil, errors.New("compaction service requires a chapter log")
	}
	if cfg.Engine == nil {
		return nil, errors.New("compaction service requires an engine")
	}
	if cfg.Cache == nil {
		return nil, errors.New("compaction service requires a merge cache")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &Service{
		log:       cfg.Log,
		engine:    cfg.Engine,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}, nil
}

// Summary returns the rendered layered summary for req. The detail window is
// not part of the cache key, so a cached rendering is served regardless of
// the window it was built with.
//
// When the rendering succeeds but cannot be cached, the text is returned
// together with an error wrapping mergecache.ErrCacheWrite.
//
// Only the request whose compute actually ran logs the rendering and
// publishes its event. A request that joins another request's in-flight
// compute returns the shared entry without either, so one rendering yields
// one event. If the request that started the compute is abandoned, the
// rendering still completes for the joined requests but publishes nothing.
func (s *Service) Summary(ctx context.Context, req Request) (Response, error) {
	if req.Observation < 1 {
		return Response{}, fmt.Errorf("%w: observation chapter %d is below 1", ErrInvalidArgument, req.Observation)
	}
	if req.MergeFactor < 2 {
		return Response{}, fmt.Errorf("%w: merge factor %d is below 2", ErrInvalidArgument, req.MergeFactor)
	}
	if req.DetailWindow < 0 {
		return Response{}, fmt.Errorf("%w: detail window %d is negative", ErrInvalidArgument, req.DetailWindow)
	}

	key := mergecache.Key{Observation: req.Observation, MergeFactor: req.MergeFactor}
	var (
		rendered Rendered
		total    int
		elapsed  time.Duration
	)

	res, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*mergecache.Entry, error) {
		start := time.Now()

		chapters, err := s.chapters(ctx, req.Observation)
		if err != nil {
			return nil, err
		}

		view, err := s.engine.Compact(ctx, chapters, Options{
			Observation:  req.Observation,
			MergeFactor:  req.MergeFactor,
			DetailWindow: req.DetailWindow,
		})
		if err != nil {
			return nil, err
		}

		rendered = Render(view)
		total = view.TotalChapters
		elapsed = time.Since(start)
		return mergecache.NewEntry(key, rendered.Text, rendered.LayerCount, rendered.Titles), nil
	}, req.Force)

	if res.Entry == nil {
		return Response{}, err
	}

	if !res.Hit && elapsed > 0 {
		s.logger.Info("rendered layered summary",
			"observation", req.Observation,
			"merge_factor", req.MergeFactor,
			"chapters", total,
			"layers", rendered.LayerCount,
			"text_length", res.Entry.TextLength,
			"duration", elapsed,
		)
		s.publish(ctx, req, res.Entry, total, elapsed, err)
	}

	return Response{Entry: res.Entry, Hit: res.Hit}, err
}

// chapters reads the log and returns one canonical record per number up to
// and including observation.
func (s *Service) chapters(ctx context.Context, observation int) ([]chapter.Record, error) {
	all, err := s.log.AllChapters(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chapter log: %w", err)
	}
	return chapter.UpTo(chapter.Canonicalize(all), observation), nil
}

func (s *Service) publish(ctx context.Context, req Request, entry *mergecache.Entry, total int, elapsed time.Duration, cacheErr error) {
	if s.publisher == nil {
		return
	}

	meta := eventstream.RenderMeta{
		TotalChapters: total,
		LayerCount:    entry.LayerCount,
		TextLength:    entry.TextLength,
		Titles:        entry.Titles,
		DurationMs:    elapsed.Milliseconds(),
	}
	if cacheErr != nil {
		meta.CacheWriteErr = cacheErr.Error()
	}

	event := eventstream.NewCompactionRenderedEvent(eventstream.CompactionMeta{
		ObservationChapter: req.Observation,
		MergeFactor:        req.MergeFactor,
		DetailWindow:       req.DetailWindow,
		Forced:             req.Force,
	}, meta)

	if err := s.publisher.PublishCompaction(ctx, event); err != nil {
		s.logger.Warn("failed to publish compaction event", "error", err)
	}
}

// Invalidate drops the cached rendering for key.
func (s *Service) Invalidate(ctx context.Context, key mergecache.Key) error {
	return s.cache.Invalidate(ctx, key)
}

// Cached returns the stored rendering for key without computing it.
func (s *Service) Cached(ctx context.Context, key mergecache.Key) (*mergecache.Entry, error) {
	return s.cache.Load(ctx, key)
}

// Entries lists every cached rendering.
func (s *Service) Entries(ctx context.Context) ([]*mergecache.Entry, error) {
	return s.cache.Entries(ctx)
}

// Chapters returns the canonical chapter sequence from the log.
func (s *Service) Chapters(ctx context.Context) ([]chapter.Record, error) {
	all, err := s.log.AllChapters(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chapter log: %w", err)
	}
	return chapter.Canonicalize(all), nil
}
