package kafka_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bochendong/dragon-continue/pkg/eventstream"
	"github.com/bochendong/dragon-continue/pkg/eventstream/kafka"
)

var _ = Describe("Publisher", func() {
	It("requires a broker", func() {
		_, err := kafka.NewPublisher(kafka.Config{})
		Expect(err).To(MatchError(ContainSubstring("broker")))
	})

	It("defaults the topic", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)
		Expect(p.Topic()).To(Equal(kafka.DefaultTopic))
	})

	It("rejects nil events before touching the network", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)

		Expect(p.PublishCompaction(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})
})

var _ = Describe("NewMessage", func() {
	It("keys messages by observation chapter", func() {
		event := eventstream.NewCompactionRenderedEvent(
			eventstream.CompactionMeta{ObservationChapter: 42, MergeFactor: 3},
			eventstream.RenderMeta{LayerCount: 2},
		)

		msg, err := kafka.NewMessage(event)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(msg.Key)).To(Equal("42"))
		Expect(msg.Headers[0].Key).To(Equal("event_type"))
		Expect(string(msg.Headers[0].Value)).To(Equal(eventstream.EventTypeCompactionRendered))

		var decoded eventstream.CompactionRenderedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
		Expect(decoded.Result.LayerCount).To(Equal(2))
	})
})
