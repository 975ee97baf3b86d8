// Package storetest holds the behaviors every mergecache.Store must satisfy.
// Store packages call StoreBehaviors from their own ginkgo suites.
package storetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

// StoreBehaviors registers the shared store specs. newStore is called before
// each test and the returned store is closed after it.
func StoreBehaviors(newStore func() mergecache.Store) {
	var (
		store mergecache.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
	})

	AfterEach(func() {
		if store != nil {
			Expect(store.Close()).To(Succeed())
			store = nil
		}
	})

	It("returns ErrNotFound on a miss", func() {
		_, err := store.Load(ctx, mergecache.Key{Observation: 20, MergeFactor: 3})
		Expect(err).To(MatchError(mergecache.ErrNotFound))
	})

	It("round trips an entry", func() {
		key := mergecache.Key{Observation: 20, MergeFactor: 3}
		entry := mergecache.NewEntry(key, "# 分层情节大纲摘要", 2, []string{"龙王篇章（第9章合并）", "学院篇章（第3章合并）"})
		Expect(store.Save(ctx, entry)).To(Succeed())

		got, err := store.Load(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Key).To(Equal(key))
		Expect(got.Text).To(Equal("# 分层情节大纲摘要"))
		Expect(got.TextLength).To(Equal(10))
		Expect(got.LayerCount).To(Equal(2))
		Expect(got.Titles).To(Equal([]string{"龙王篇章（第9章合并）", "学院篇章（第3章合并）"}))
		Expect(got.CreatedAt).To(BeTemporally("~", entry.CreatedAt, time.Second))
	})

	It("overwrites an existing key", func() {
		key := mergecache.Key{Observation: 5, MergeFactor: 2}
		Expect(store.Save(ctx, mergecache.NewEntry(key, "first", 1, nil))).To(Succeed())
		Expect(store.Save(ctx, mergecache.NewEntry(key, "second", 1, nil))).To(Succeed())

		got, err := store.Load(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Text).To(Equal("second"))
		Expect(got.Titles).To(BeEmpty())

		all, err := store.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(1))
	})

	It("keeps keys independent", func() {
		Expect(store.Save(ctx, mergecache.NewEntry(mergecache.Key{Observation: 9, MergeFactor: 3}, "a", 1, nil))).To(Succeed())
		Expect(store.Save(ctx, mergecache.NewEntry(mergecache.Key{Observation: 9, MergeFactor: 2}, "b", 1, nil))).To(Succeed())
		Expect(store.Save(ctx, mergecache.NewEntry(mergecache.Key{Observation: 4, MergeFactor: 3}, "c", 0, nil))).To(Succeed())

		all, err := store.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))
		Expect(all[0].Key).To(Equal(mergecache.Key{Observation: 4, MergeFactor: 3}))
		Expect(all[1].Key).To(Equal(mergecache.Key{Observation: 9, MergeFactor: 2}))
		Expect(all[2].Key).To(Equal(mergecache.Key{Observation: 9, MergeFactor: 3}))
	})

	It("deletes an entry and tolerates missing keys", func() {
		key := mergecache.Key{Observation: 7, MergeFactor: 3}
		Expect(store.Save(ctx, mergecache.NewEntry(key, "text", 1, nil))).To(Succeed())
		Expect(store.Delete(ctx, key)).To(Succeed())
		Expect(store.Delete(ctx, key)).To(Succeed())

		_, err := store.Load(ctx, key)
		Expect(err).To(MatchError(mergecache.ErrNotFound))
	})
}
