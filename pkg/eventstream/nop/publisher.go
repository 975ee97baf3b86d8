// Package nop provides the publisher used when no brokers are configured.
// Events are dropped after a debug log line.
package nop

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/bochendong/dragon-continue/pkg/eventstream"
	"github.com/bochendong/dragon-continue/pkg/logger"
)

type Publisher struct {
	log     *slog.Logger
	dropped atomic.Int64
}

// NewPublisher returns a Publisher that logs through log, or discards when
// log is nil.
func NewPublisher(log *slog.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{log: log}
}

func (p *Publisher) PublishCompaction(ctx context.Context, event *eventstream.CompactionRenderedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	p.dropped.Add(1)
	p.log.DebugContext(ctx, "compaction event not published, no brokers configured",
		"event_id", event.EventID,
		"observation", event.Request.ObservationChapter,
		"merge_factor", event.Request.MergeFactor,
	)
	return nil
}

// Dropped reports how many events were accepted and discarded.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error { return nil }
