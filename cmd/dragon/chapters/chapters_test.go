package chapterscmder_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	chapterscmder "github.com/bochendong/dragon-continue/cmd/dragon/chapters"
	chaptersqlite "github.com/bochendong/dragon-continue/pkg/chapter/sqlite"
)

const storyJSON = `[
  {"chapter_number": 1, "title": "入学", "summary": "路明非收到录取通知"},
  {"chapter_number": 2, "title": "龙族", "summary": "初识屠龙学院"},
  {"chapter_number": 2, "title": "龙族（重写）", "summary": "改写版本"}
]`

var _ = Describe("Chapters command", func() {
	var (
		tmpDir string
		dbPath string
		out    *bytes.Buffer
	)

	run := func(stdin string, args ...string) error {
		root := &cobra.Command{Use: "dragon", SilenceUsage: true}
		root.PersistentFlags().BoolP("debug", "d", false, "")
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(chapterscmder.NewChaptersCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetIn(strings.NewReader(stdin))
		root.SetArgs(append([]string{"chapters"}, args...))
		return root.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dragon-chapters-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		dbPath = filepath.Join(tmpDir, "story.db")
		GinkgoT().Setenv("HOME", tmpDir)
		GinkgoT().Setenv("DRAGON_SQLITE", "")
		out = &bytes.Buffer{}
	})

	It("has import and list subcommands", func() {
		cmd := chapterscmder.NewChaptersCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ConsistOf("import", "list"))
	})

	It("imports records from a file in order", func() {
		file := filepath.Join(tmpDir, "story.json")
		Expect(os.WriteFile(file, []byte(storyJSON), 0o600)).To(Succeed())

		Expect(run("", "import", file, "--sqlite", dbPath)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Imported 3 chapters"))

		log, err := chaptersqlite.NewLog(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer log.Close()

		rec, err := log.GetChapter(context.Background(), 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Title).To(Equal("龙族"))

		all, err := log.AllChapters(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))
	})

	It("imports from stdin with -", func() {
		Expect(run(storyJSON, "import", "-", "--sqlite", dbPath)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Imported 3 chapters"))
	})

	It("rejects malformed JSON without touching the log", func() {
		Expect(run("{not json", "import", "-", "--sqlite", dbPath)).To(MatchError(ContainSubstring("decoding chapters")))
		Expect(dbPath).NotTo(BeAnExistingFile())
	})

	It("rejects chapter numbers below 1", func() {
		Expect(run(`[{"chapter_number": 0, "title": "序"}]`, "import", "-", "--sqlite", dbPath)).
			To(MatchError(ContainSubstring("chapter_number must be at least 1")))
	})

	It("lists stored chapters and marks rewrites", func() {
		Expect(run(storyJSON, "import", "-", "--sqlite", dbPath)).To(Succeed())
		out.Reset()

		Expect(run("", "list", "--sqlite", dbPath)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("入学"))
		Expect(out.String()).To(ContainSubstring("(rewrite)"))
		Expect(out.String()).To(ContainSubstring("3 records"))
	})

	It("reports an empty log", func() {
		Expect(run("", "list", "--sqlite", dbPath)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No chapters stored."))
	})
})
