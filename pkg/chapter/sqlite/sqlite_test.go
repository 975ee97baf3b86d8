package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bochendong/dragon-continue/pkg/chapter"
	"github.com/bochendong/dragon-continue/pkg/chapter/sqlite"
)

var _ = Describe("Log", func() {
	var (
		log *sqlite.Log
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		log, err = sqlite.NewLog(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if log != nil {
			log.Close()
		}
	})

	It("creates a database file", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "chapters.db")
		l, err := sqlite.NewLog(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer l.Close()

		_, err = os.Stat(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("stores and retrieves every field", func() {
		r := chapter.Record{Number: 1, Fields: chapter.Fields{
			Title: "卡塞尔之门", Summary: "路明非收到录取通知书", PlotPoint: "进入龙族世界",
			KeyEvents: "收到通知书", CharacterFocus: "路明非", Setting: "卡塞尔学院",
			Mood: "神秘、好奇", Themes: "新世界探索",
		}}
		Expect(log.AddChapter(ctx, r)).To(Succeed())

		got, err := log.GetChapter(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(*got).To(Equal(r))
	})

	It("keeps rewrites of the same chapter in insertion order", func() {
		Expect(log.AddChapter(ctx, chapter.Record{Number: 3, Fields: chapter.Fields{Title: "first"}})).To(Succeed())
		Expect(log.AddChapter(ctx, chapter.Record{Number: 3, Fields: chapter.Fields{Title: "second"}})).To(Succeed())

		got, err := log.GetChapter(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Title).To(Equal("first"))

		all, err := log.ChaptersByNumber(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(2))
		Expect(all[1].Title).To(Equal("second"))
	})

	It("returns ErrNotFound for a missing chapter", func() {
		_, err := log.GetChapter(ctx, 42)
		Expect(err).To(MatchError(chapter.ErrNotFound))
	})

	It("lists chapters ascending by number", func() {
		for _, n := range []int{5, 1, 3} {
			Expect(log.AddChapter(ctx, chapter.Record{Number: n, Fields: chapter.Fields{Title: "t"}})).To(Succeed())
		}

		all, err := log.AllChapters(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))
		Expect(all[0].Number).To(Equal(1))
		Expect(all[1].Number).To(Equal(3))
		Expect(all[2].Number).To(Equal(5))
	})
})
