package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bochendong/dragon-continue/pkg/logger"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

var _ = Describe("Logger", func() {
	Describe("ParseFormat", func() {
		DescribeTable("known formats",
			func(in string, want logger.Format) {
				f, err := logger.ParseFormat(in)
				Expect(err).NotTo(HaveOccurred())
				Expect(f).To(Equal(want))
			},
			Entry("empty defaults to text", "", logger.FormatText),
			Entry("text", "text", logger.FormatText),
			Entry("pretty", "pretty", logger.FormatPretty),
			Entry("json with padding", " JSON ", logger.FormatJSON),
		)

		It("round-trips through String", func() {
			for _, f := range []logger.Format{logger.FormatText, logger.FormatPretty, logger.FormatJSON} {
				parsed, err := logger.ParseFormat(f.String())
				Expect(err).NotTo(HaveOccurred())
				Expect(parsed).To(Equal(f))
			}
		})

		It("rejects anything else", func() {
			_, err := logger.ParseFormat("xml")
			Expect(err).To(MatchError(ContainSubstring(`unknown log format "xml"`)))
		})
	})

	Describe("New", func() {
		It("writes text records by default", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("window compacted", "start", 1, "end", 3)

			Expect(buf.String()).To(ContainSubstring("window compacted"))
			Expect(buf.String()).To(ContainSubstring("start=1"))
		})

		It("drops debug records unless debug is on", func() {
			var quiet, loud bytes.Buffer
			logger.New(logger.WithWriter(&quiet)).Debug("hidden")
			logger.New(logger.WithWriter(&loud), logger.WithDebug(true)).Debug("shown")

			Expect(quiet.String()).To(BeEmpty())
			Expect(loud.String()).To(ContainSubstring("shown"))
		})

		It("emits JSON tagged with the component", func() {
			var buf bytes.Buffer
			l := logger.New(
				logger.WithWriter(&buf),
				logger.WithFormat(logger.FormatJSON),
				logger.WithComponent("engine"),
			)
			l.Info("layer built", "layer", 2)

			var rec map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &rec)).To(Succeed())
			Expect(rec["msg"]).To(Equal("layer built"))
			Expect(rec["component"]).To(Equal("engine"))
			Expect(rec["layer"]).To(BeNumerically("==", 2))
		})

		It("renders pretty output", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatPretty)).Warn("oracle fell back")

			Expect(buf.String()).To(ContainSubstring("oracle fell back"))
		})

		It("copies records to every writer", func() {
			var a, b bytes.Buffer
			logger.New(logger.WithWriter(&a, &b)).Info("twice")

			Expect(a.String()).To(ContainSubstring("twice"))
			Expect(b.String()).To(Equal(a.String()))
		})
	})

	Describe("Nop", func() {
		It("is never enabled", func() {
			l := logger.Nop()
			Expect(l.Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			l.Error("ignored")
		})
	})

	Describe("Multi", func() {
		It("fans records out and skips nil loggers", func() {
			var text, js bytes.Buffer
			l := logger.Multi(
				logger.New(logger.WithWriter(&text)),
				nil,
				logger.New(logger.WithWriter(&js), logger.WithFormat(logger.FormatJSON)),
			)
			l.With("key", "6x3").Info("cache hit")

			Expect(text.String()).To(ContainSubstring("key=6x3"))
			var rec map[string]any
			Expect(json.Unmarshal(js.Bytes(), &rec)).To(Succeed())
			Expect(rec["key"]).To(Equal("6x3"))
		})

		It("honours each handler's level", func() {
			var info, debug bytes.Buffer
			l := logger.Multi(
				logger.New(logger.WithWriter(&info)),
				logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
			)
			Expect(l.Enabled(context.Background(), slog.LevelDebug)).To(BeTrue())
			l.Debug("detail")

			Expect(info.String()).To(BeEmpty())
			Expect(debug.String()).To(ContainSubstring("detail"))
		})

		It("keeps writing past a failing handler and joins the errors", func() {
			var buf bytes.Buffer
			l := logger.Multi(
				logger.New(logger.WithWriter(failingWriter{})),
				logger.New(logger.WithWriter(&buf)),
			)
			r := slog.NewRecord(time.Now(), slog.LevelInfo, "still here", 0)
			err := l.Handler().Handle(context.Background(), r)

			Expect(err).To(MatchError(ContainSubstring("disk full")))
			Expect(buf.String()).To(ContainSubstring("still here"))
		})

		It("is disabled with no loggers", func() {
			Expect(logger.Multi().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		})
	})
})
