package stack_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/cmd/dragon/stack"
	"github.com/bochendong/dragon-continue/pkg/chapter"
	"github.com/bochendong/dragon-continue/pkg/compaction"
	"github.com/bochendong/dragon-continue/pkg/config"
	"github.com/bochendong/dragon-continue/pkg/credentials"
	"github.com/bochendong/dragon-continue/pkg/eventstream/nop"
	"github.com/bochendong/dragon-continue/pkg/logger"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

var _ = Describe("stack", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "stack-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		GinkgoT().Setenv("HOME", tmpDir)
		GinkgoT().Setenv("DRAGON_SQLITE", "")
		GinkgoT().Setenv("XDG_DATA_HOME", "")
		GinkgoT().Setenv("DRAGON_ORACLE_PROVIDER", "none")

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })
	})

	Describe("Resolve", func() {
		It("uses defaults and file heuristics", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"),
				[]byte("[heuristics]\ncharacters = [\"甲\"]\n"), 0o600)).To(Succeed())

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			s, err := stack.Resolve(v, tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.ConfigDir).To(Equal(tmpDir))
			Expect(s.Backend).To(Equal("sqlite"))
			Expect(s.Oracle.Provider).To(Equal("none"))
			Expect(s.OracleTimeout).To(Equal(60 * time.Second))
			Expect(s.MergeFactor).To(Equal(3))
			Expect(s.DetailWindow).To(Equal(3))
			Expect(s.Concurrency).To(Equal(1))
			Expect(s.Brokers).To(BeEmpty())
			Expect(s.Heuristics.Characters).To(Equal([]string{"甲"}))
			Expect(s.Heuristics.Anchors).To(Equal(compaction.DefaultHeuristics().Anchors))
		})

		It("takes the API key from credentials.toml when nothing else sets it", func() {
			GinkgoT().Setenv("DRAGON_ORACLE_PROVIDER", "anthropic")
			GinkgoT().Setenv("ANTHROPIC_API_KEY", "")
			ring, err := credentials.Open(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(ring.Set("anthropic", "sk-ant-stored")).To(Succeed())

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			s, err := stack.Resolve(v, tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Oracle.APIKey).To(Equal("sk-ant-stored"))
		})

		It("rejects a non-positive timeout", func() {
			GinkgoT().Setenv("DRAGON_ORACLE_TIMEOUT", "0s")
			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = stack.Resolve(v, tmpDir)
			Expect(err).To(MatchError(ContainSubstring("oracle.timeout")))
		})
	})

	Describe("Load", func() {
		It("lets a set flag win over the environment", func() {
			cmd := &cobra.Command{Use: "test"}
			cmd.Flags().String("config-dir", tmpDir, "")
			stack.AddFlags(cmd, stack.CompactionFlags...)
			Expect(cmd.Flags().Set("merge-factor", "5")).To(Succeed())
			GinkgoT().Setenv("DRAGON_COMPACTION_MERGE_FACTOR", "4")

			s, err := stack.Load(cmd, stack.CompactionFlags...)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.MergeFactor).To(Equal(5))
		})
	})

	Describe("New", func() {
		It("wires a working service over SQLite without a summarizer", func() {
			ctx := context.Background()
			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			s, err := stack.Resolve(v, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			st, err := stack.New(ctx, s, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(st.Close)

			Expect(filepath.Join(tmpDir, "dragon.db")).To(BeAnExistingFile())
			Expect(st.Publisher).To(BeAssignableToTypeOf(&nop.Publisher{}))

			for i := 1; i <= 8; i++ {
				Expect(st.Chapters.AddChapter(ctx, chapter.Record{
					Number: i,
					Fields: chapter.Fields{Title: fmt.Sprintf("第%d章", i), Summary: "学院生活"},
				})).To(Succeed())
			}

			resp, err := st.Service.Summary(ctx, compaction.Request{Observation: 8, MergeFactor: 3, DetailWindow: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Hit).To(BeFalse())
			Expect(resp.Entry.Titles).To(ContainElement("学院篇章（第3章合并）"))

			cached, err := st.Store.Load(ctx, mergecache.Key{Observation: 8, MergeFactor: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(cached.Text).To(Equal(resp.Entry.Text))

			families, err := st.Registry.Gather()
			Expect(err).NotTo(HaveOccurred())
			Expect(families).NotTo(BeEmpty())
		})

		It("fails for a postgres backend without a DSN", func() {
			s := stack.Settings{ConfigDir: tmpDir, Backend: "postgres", OracleTimeout: time.Second}
			_, err := stack.New(context.Background(), s, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("postgres_dsn is empty")))
		})
	})
})
