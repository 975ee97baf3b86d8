package mergecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bochendong/dragon-continue/pkg/logger"
)

// ComputeFunc produces a fresh entry on a cache miss.
type ComputeFunc func(ctx context.Context) (*Entry, error)

// Observer captures cache telemetry.
type Observer interface {
	RecordLookup(hit bool)
	RecordWriteFailure()
}

type nopObserver struct{}

func (nopObserver) RecordLookup(bool)   {}
func (nopObserver) RecordWriteFailure() {}

// DefaultComputeTimeout bounds a shared compute once it no longer follows
// any single caller's context.
const DefaultComputeTimeout = 10 * time.Minute

// Cache is a read-through cache over a Store.
type Cache struct {
	store    Store
	group    singleflight.Group
	observer Observer
	logger   *slog.Logger
	timeout  time.Duration

	mu      sync.Mutex
	flights map[string]*flight
}

// flight tracks the callers waiting on one shared compute.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	nextID  int
	waiters map[int]context.Context
}

// live reports whether any waiter still wants the result. Callers hold c.mu.
func (f *flight) live() bool {
	for _, ctx := range f.waiters {
		if ctx.Err() == nil {
			return true
		}
	}
	return false
}

// Option configures a Cache.
type Option func(*Cache)

// WithComputeTimeout bounds each shared compute. Zero or less means
// DefaultComputeTimeout.
func WithComputeTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a cache over store. observer may be nil.
func New(store Store, observer Observer, log *slog.Logger, opts ...Option) *Cache {
	if observer == nil {
		observer = nopObserver{}
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Cache{
		store:    store,
		observer: observer,
		logger:   log,
		timeout:  DefaultComputeTimeout,
		flights:  make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the outcome of GetOrCompute.
type Result struct {
	Entry *Entry

	// Hit is true when the entry came from the store unchanged.
	Hit bool
}

// GetOrCompute returns the stored entry for key, or runs compute and stores
// its result. On a hit compute is never invoked and the stored text is
// returned as is. force skips the lookup and overwrites.
//
// Concurrent misses for one key share a single compute call, which runs
// detached from any one caller's context and is bounded by the compute
// timeout. A caller whose ctx ends stops waiting and gets ctx.Err() without
// affecting the others. The result is committed only while at least one
// caller is still waiting; once all of them have gone the compute is
// cancelled and nothing is persisted.
//
// When the commit fails the computed entry is still returned together with an
// error wrapping ErrCacheWrite.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc, force bool) (Result, error) {
	if !force {
		entry, err := c.store.Load(ctx, key)
		switch {
		case err == nil:
			c.observer.RecordLookup(true)
			c.logger.Debug("merge cache hit", "key", key.String())
			return Result{Entry: entry, Hit: true}, nil
		case !errors.Is(err, ErrNotFound):
			return Result{}, fmt.Errorf("load merge summary: %w", err)
		}
		c.observer.RecordLookup(false)
	}

	flightKey := fmt.Sprintf("%d/%d/%t", key.Observation, key.MergeFactor, force)

	c.mu.Lock()
	f, ok := c.flights[flightKey]
	if !ok {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		f = &flight{ctx: fctx, cancel: cancel, waiters: make(map[int]context.Context)}
		c.flights[flightKey] = f
	}
	id := f.nextID
	f.nextID++
	f.waiters[id] = ctx
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.compute(f, key, compute)
	})
	c.mu.Unlock()

	select {
	case r := <-ch:
		c.leave(flightKey, f, id)
		res, _ := r.Val.(Result)
		return res, r.Err
	case <-ctx.Done():
		c.leave(flightKey, f, id)
		c.logger.Debug("merge summary request abandoned", "key", key.String())
		return Result{}, ctx.Err()
	}
}

// leave drops a waiter. The last one out cancels the shared compute and
// forgets the flight so later callers start afresh.
func (c *Cache) leave(flightKey string, f *flight, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(f.waiters, id)
	if len(f.waiters) > 0 {
		return
	}
	if c.flights[flightKey] == f {
		delete(c.flights, flightKey)
		c.group.Forget(flightKey)
	}
	f.cancel()
}

func (c *Cache) compute(f *flight, key Key, compute ComputeFunc) (Result, error) {
	entry, err := compute(f.ctx)
	if err != nil {
		return Result{}, err
	}
	entry.Key = key

	c.mu.Lock()
	live := f.live()
	c.mu.Unlock()
	if !live {
		return Result{}, context.Canceled
	}
	if err := f.ctx.Err(); err != nil {
		return Result{}, err
	}

	if err := c.store.Save(f.ctx, entry); err != nil {
		c.observer.RecordWriteFailure()
		c.logger.Error("failed to save merge summary", "key", key.String(), "error", err)
		return Result{Entry: entry}, fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}

	c.logger.Debug("merge summary saved",
		"key", key.String(),
		"text_length", entry.TextLength,
		"layers", entry.LayerCount,
	)
	return Result{Entry: entry}, nil
}

// Invalidate removes the entry for key.
func (c *Cache) Invalidate(ctx context.Context, key Key) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete merge summary: %w", err)
	}
	return nil
}

// Load returns the stored entry for key without computing.
func (c *Cache) Load(ctx context.Context, key Key) (*Entry, error) {
	return c.store.Load(ctx, key)
}

// Entries lists every stored entry.
func (c *Cache) Entries(ctx context.Context) ([]*Entry, error) {
	return c.store.List(ctx)
}
