package versioncmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	versioncmder "github.com/bochendong/dragon-continue/cmd/dragon/version"
)

var _ = Describe("version", func() {
	It("prints the build metadata", func() {
		var out bytes.Buffer
		cmd := versioncmder.NewVersionCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(MatchRegexp(`^Version: \S+\nSha: HEAD\nBuilt at: dev\n$`))
	})
})
