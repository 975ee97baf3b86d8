package compaction_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bochendong/dragon-continue/pkg/chapter"
	"github.com/bochendong/dragon-continue/pkg/chapter/inmemory"
	"github.com/bochendong/dragon-continue/pkg/compaction"
	"github.com/bochendong/dragon-continue/pkg/eventstream"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
	cacheinmemory "github.com/bochendong/dragon-continue/pkg/mergecache/inmemory"
	"github.com/bochendong/dragon-continue/pkg/oracle"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.CompactionRenderedEvent
}

func (p *recordingPublisher) PublishCompaction(_ context.Context, event *eventstream.CompactionRenderedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type brokenStore struct {
	mergecache.Store
}

func (brokenStore) Save(context.Context, *mergecache.Entry) error {
	return errors.New("database is locked")
}

type brokenLog struct{}

func (brokenLog) GetChapter(context.Context, int) (*chapter.Record, error) {
	return nil, errors.New("no such table")
}

func (brokenLog) ChaptersByNumber(context.Context, int) ([]chapter.Record, error) {
	return nil, errors.New("no such table")
}

func (brokenLog) AllChapters(context.Context) ([]chapter.Record, error) {
	return nil, errors.New("no such table")
}

func newService(log chapter.Log, o oracle.Oracle, store mergecache.Store, pub eventstream.Publisher) *compaction.Service {
	engine, err := compaction.NewEngine(
		compaction.NewWindowCompactor(compaction.WindowConfig{Oracle: o}, nil),
		compaction.EngineConfig{},
		nil,
	)
	Expect(err).NotTo(HaveOccurred())

	svc, err := compaction.NewService(compaction.ServiceConfig{
		Log:       log,
		Engine:    engine,
		Cache:     mergecache.New(store, nil, nil),
		Publisher: pub,
	})
	Expect(err).NotTo(HaveOccurred())
	return svc
}

var _ = Describe("Service", func() {
	var (
		ctx   context.Context
		log   *inmemory.Log
		store *cacheinmemory.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		log = inmemory.NewLog(makeChapters(25)...)
		store = cacheinmemory.NewStore()
	})

	It("serves the first rendering again even after the oracle recovers", func() {
		req := compaction.Request{Observation: 20, MergeFactor: 3, DetailWindow: 3}

		first, err := newService(log, unreachableOracle, store, nil).Summary(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Hit).To(BeFalse())

		recovered := &countingOracle{}
		second, err := newService(log, recovered, store, nil).Summary(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Hit).To(BeTrue())
		Expect(second.Entry.Text).To(Equal(first.Entry.Text))
		Expect(recovered.calls.Load()).To(BeZero())
	})

	It("only reads chapters up to the observation point", func() {
		res, err := newService(log, nil, store, nil).Summary(ctx, compaction.Request{
			Observation: 20, MergeFactor: 3, DetailWindow: 3,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Entry.Text).To(ContainSubstring("- 总章节数: 20"))
		Expect(res.Entry.Text).To(ContainSubstring("第18-20章"))
		Expect(res.Entry.Text).NotTo(ContainSubstring("### 第21章"))
		Expect(res.Entry.LayerCount).To(Equal(2))
	})

	It("resolves duplicate chapter numbers to the first record", func() {
		rewrite := makeChapters(20)[19]
		rewrite.Title = "重写版本"
		Expect(log.AddChapter(ctx, rewrite)).To(Succeed())

		res, err := newService(log, nil, store, nil).Summary(ctx, compaction.Request{
			Observation: 20, MergeFactor: 3, DetailWindow: 3,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Entry.Text).To(ContainSubstring("### 第20章: 第20章"))
		Expect(res.Entry.Text).NotTo(ContainSubstring("重写版本"))
	})

	It("recomputes when forced", func() {
		req := compaction.Request{Observation: 20, MergeFactor: 3, DetailWindow: 3}
		_, err := newService(log, unreachableOracle, store, nil).Summary(ctx, req)
		Expect(err).NotTo(HaveOccurred())

		recovered := &countingOracle{}
		req.Force = true
		res, err := newService(log, recovered, store, nil).Summary(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Hit).To(BeFalse())
		Expect(recovered.calls.Load()).To(BeNumerically(">", 0))
		Expect(res.Entry.Titles).To(ContainElement("oracle 1-9"))
	})

	It("returns the text together with a cache write failure", func() {
		svc := newService(log, nil, brokenStore{Store: store}, nil)

		res, err := svc.Summary(ctx, compaction.Request{Observation: 10, MergeFactor: 3, DetailWindow: 3})
		Expect(err).To(MatchError(mergecache.ErrCacheWrite))
		Expect(res.Entry).NotTo(BeNil())
		Expect(res.Entry.Text).To(ContainSubstring("分层情节大纲摘要"))
	})

	It("surfaces chapter log failures", func() {
		svc := newService(brokenLog{}, nil, store, nil)

		_, err := svc.Summary(ctx, compaction.Request{Observation: 10, MergeFactor: 3, DetailWindow: 3})
		Expect(err).To(MatchError(ContainSubstring("no such table")))

		_, err = store.Load(ctx, mergecache.Key{Observation: 10, MergeFactor: 3})
		Expect(err).To(MatchError(mergecache.ErrNotFound))
	})

	It("rejects invalid requests", func() {
		svc := newService(log, nil, store, nil)

		for _, req := range []compaction.Request{
			{Observation: 0, MergeFactor: 3},
			{Observation: 5, MergeFactor: 1},
			{Observation: 5, MergeFactor: 3, DetailWindow: -2},
		} {
			_, err := svc.Summary(ctx, req)
			Expect(err).To(MatchError(compaction.ErrInvalidArgument))
		}
	})

	It("publishes an event for fresh renderings only", func() {
		pub := &recordingPublisher{}
		svc := newService(log, nil, store, pub)
		req := compaction.Request{Observation: 12, MergeFactor: 2, DetailWindow: 3}

		_, err := svc.Summary(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Summary(ctx, req)
		Expect(err).NotTo(HaveOccurred())

		Expect(pub.events).To(HaveLen(1))
		event := pub.events[0]
		Expect(event.EventType).To(Equal(eventstream.EventTypeCompactionRendered))
		Expect(event.Request.ObservationChapter).To(Equal(12))
		Expect(event.Result.TotalChapters).To(Equal(12))
	})

	It("publishes once when a second request joins an in-flight rendering", func() {
		release := make(chan struct{})
		var started sync.Once
		running := make(chan struct{})
		gated := oracle.Func(func(ctx context.Context, records []chapter.Record) (chapter.Fields, error) {
			started.Do(func() { close(running) })
			select {
			case <-release:
			case <-ctx.Done():
				return chapter.Fields{}, ctx.Err()
			}
			return chapter.Fields{Title: "gated", Summary: "merged"}, nil
		})
		pub := &recordingPublisher{}
		svc := newService(log, gated, store, pub)
		req := compaction.Request{Observation: 12, MergeFactor: 3, DetailWindow: 3}

		texts := make(chan string, 2)
		for range 2 {
			go func() {
				defer GinkgoRecover()
				res, err := svc.Summary(ctx, req)
				Expect(err).NotTo(HaveOccurred())
				texts <- res.Entry.Text
			}()
		}
		Eventually(running).Should(BeClosed())
		time.Sleep(50 * time.Millisecond)
		close(release)

		var first, second string
		Eventually(texts).Should(Receive(&first))
		Eventually(texts).Should(Receive(&second))
		Expect(second).To(Equal(first))

		pub.mu.Lock()
		defer pub.mu.Unlock()
		Expect(pub.events).To(HaveLen(1))
	})

	It("invalidates and lists cached renderings", func() {
		svc := newService(log, nil, store, nil)
		key := mergecache.Key{Observation: 15, MergeFactor: 3}

		_, err := svc.Summary(ctx, compaction.Request{Observation: 15, MergeFactor: 3, DetailWindow: 3})
		Expect(err).NotTo(HaveOccurred())

		entries, err := svc.Entries(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))

		cached, err := svc.Cached(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(cached.Key).To(Equal(key))

		Expect(svc.Invalidate(ctx, key)).To(Succeed())
		_, err = svc.Cached(ctx, key)
		Expect(err).To(MatchError(mergecache.ErrNotFound))
	})

	It("requires its collaborators", func() {
		_, err := compaction.NewService(compaction.ServiceConfig{})
		Expect(err).To(HaveOccurred())
	})
})
