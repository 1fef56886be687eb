package queue

import (
	"time"

	"github.com/redis/go-redis/v9"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"collabsphere.app/server/internal/model"
)

var _ = Describe("parseEvent", func() {
	validMessage := func() redis.XMessage {
		return redis.XMessage{
			ID: "1-0",
			Values: map[string]any{
				"workspace_id": "7",
				"seq":          "12",
				"kind":         "message_posted",
				"payload":      `{"text":"hi"}`,
				"created_at":   "1700000000000",
				"origin":       "instance-a",
			},
		}
	}

	It("rebuilds the event from stream fields", func() {
		ev, origin, err := parseEvent(validMessage())
		Expect(err).NotTo(HaveOccurred())

		Expect(ev.WorkspaceID).To(Equal(int64(7)))
		Expect(ev.Seq).To(Equal(int64(12)))
		Expect(ev.Kind).To(Equal(model.EventKindMessagePosted))
		Expect(string(ev.Payload)).To(Equal(`{"text":"hi"}`))
		Expect(ev.CreatedAt).To(Equal(time.UnixMilli(1700000000000)))
		Expect(origin).To(Equal("instance-a"))
	})

	It("rejects a message without a workspace id", func() {
		msg := validMessage()
		delete(msg.Values, "workspace_id")

		_, _, err := parseEvent(msg)
		Expect(err).To(MatchError(ContainSubstring("workspace_id")))
	})

	It("rejects an unparseable sequence", func() {
		msg := validMessage()
		msg.Values["seq"] = "twelve"

		_, _, err := parseEvent(msg)
		Expect(err).To(MatchError(ContainSubstring("seq")))
	})

	It("rejects unknown event kinds", func() {
		msg := validMessage()
		msg.Values["kind"] = "workspace_renamed"

		_, _, err := parseEvent(msg)
		Expect(err).To(MatchError(ContainSubstring("unknown event kind")))
	})
})
