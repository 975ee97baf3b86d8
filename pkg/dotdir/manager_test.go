package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bochendong/dragon-continue/pkg/dotdir"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		m = dotdir.NewManager()
		GinkgoT().Setenv(dotdir.HomeEnv, "")
	})

	chdir := func(dir string) {
		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })
	}

	Describe("Target", func() {
		It("creates the override directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("prefers the override over a local .dragon dir", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".dragon"), 0o755)).To(Succeed())
			chdir(tmpDir)

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})

		It("returns the local .dragon dir when no override is provided", func() {
			local := filepath.Join(tmpDir, ".dragon")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())
			chdir(tmpDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("falls back to and creates ~/.dragon", func() {
			work := filepath.Join(tmpDir, "work")
			home := filepath.Join(tmpDir, "home")
			Expect(os.Mkdir(work, 0o755)).To(Succeed())
			Expect(os.Mkdir(home, 0o755)).To(Succeed())
			chdir(work)

			origHome := os.Getenv("HOME")
			Expect(os.Setenv("HOME", home)).To(Succeed())
			DeferCleanup(func() { os.Setenv("HOME", origHome) })

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(home, ".dragon")))
			Expect(filepath.Join(home, ".dragon")).To(BeADirectory())
		})
	})

	Describe("Locate", func() {
		It("uses DRAGON_HOME ahead of a local .dragon dir", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".dragon"), 0o755)).To(Succeed())
			chdir(tmpDir)
			envDir := filepath.Join(tmpDir, "shared")
			GinkgoT().Setenv(dotdir.HomeEnv, envDir)

			dir, src, err := m.Locate("")
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(envDir))
			Expect(src).To(Equal(dotdir.SourceEnv))
			Expect(envDir).To(BeADirectory())
		})

		It("reports the override source", func() {
			GinkgoT().Setenv(dotdir.HomeEnv, filepath.Join(tmpDir, "ignored"))

			_, src, err := m.Locate(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(src).To(Equal(dotdir.SourceOverride))
		})

		It("reports a local directory", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".dragon"), 0o755)).To(Succeed())
			chdir(tmpDir)

			_, src, err := m.Locate("")
			Expect(err).NotTo(HaveOccurred())
			Expect(src).To(Equal(dotdir.SourceLocal))
		})
	})

	Describe("File", func() {
		It("joins the name onto the resolved directory", func() {
			path, err := m.File(tmpDir, dotdir.DatabaseFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(tmpDir, "dragon.db")))
		})
	})
})
