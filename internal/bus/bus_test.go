package bus_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/bus"
	"collabsphere.app/server/internal/model"
)

// memSource is an appendable in-memory event log satisfying bus.EventSource.
type memSource struct {
	mu     sync.Mutex
	events map[int64][]model.Event
}

func newMemSource() *memSource {
	return &memSource{events: make(map[int64][]model.Event)}
}

func (s *memSource) append(workspaceID int64, kind model.EventKind) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last int64
	if evs := s.events[workspaceID]; len(evs) > 0 {
		last = evs[len(evs)-1].Seq
	}
	ev := model.Event{
		WorkspaceID: workspaceID,
		Seq:         last + 1,
		Kind:        kind,
		Payload:     json.RawMessage(`{}`),
		CreatedAt:   time.Now(),
	}
	s.events[workspaceID] = append(s.events[workspaceID], ev)
	return ev
}

// pruneBefore drops events below seq, mimicking the retention sweeper.
func (s *memSource) pruneBefore(workspaceID, seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[workspaceID][:0]
	for _, ev := range s.events[workspaceID] {
		if ev.Seq >= seq {
			kept = append(kept, ev)
		}
	}
	s.events[workspaceID] = kept
}

func (s *memSource) ListSince(_ context.Context, workspaceID, fromSeq int64, limit int32) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Event
	for _, ev := range s.events[workspaceID] {
		if ev.Seq > fromSeq {
			out = append(out, ev)
			if int32(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func collectSeqs(sub *bus.Subscription, n int) []int64 {
	seqs := make([]int64, 0, n)
	timeout := time.After(2 * time.Second)
	for len(seqs) < n {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return seqs
			}
			seqs = append(seqs, ev.Seq)
		case <-timeout:
			return seqs
		}
	}
	return seqs
}

var _ = Describe("Bus", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		source   *memSource
		eventBus *bus.Bus
	)

	const wsID int64 = 7

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		source = newMemSource()
		eventBus = bus.New(source, bus.Config{BufferSize: 8, ReplayPage: 2})
	})

	AfterEach(func() {
		cancel()
	})

	It("replays stored events before live ones, in order", func() {
		source.append(wsID, model.EventKindWorkspaceCreated)
		source.append(wsID, model.EventKindMessagePosted)
		source.append(wsID, model.EventKindMessagePosted)

		sub := eventBus.Subscribe(ctx, wsID, 0)
		defer sub.Close()

		live := source.append(wsID, model.EventKindTaskAdded)
		eventBus.Publish(ctx, live)

		Expect(collectSeqs(sub, 4)).To(Equal([]int64{1, 2, 3, 4}))
	})

	It("resumes from an exclusive cursor", func() {
		for range 5 {
			source.append(wsID, model.EventKindMessagePosted)
		}

		sub := eventBus.Subscribe(ctx, wsID, 3)
		defer sub.Close()

		Expect(collectSeqs(sub, 2)).To(Equal([]int64{4, 5}))
	})

	It("suppresses duplicates when a live publish races replay", func() {
		ev := source.append(wsID, model.EventKindMessagePosted)

		sub := eventBus.Subscribe(ctx, wsID, 0)
		defer sub.Close()

		// The same committed event arrives via both phases.
		eventBus.Publish(ctx, ev)
		next := source.append(wsID, model.EventKindMessagePosted)
		eventBus.Publish(ctx, next)

		Expect(collectSeqs(sub, 2)).To(Equal([]int64{1, 2}))
	})

	It("fills gaps from the store when a relayed event arrives early", func() {
		sub := eventBus.Subscribe(ctx, wsID, 0)
		defer sub.Close()

		// Seqs 1-3 are committed, but only seq 3 reaches this instance
		// through the relay.
		source.append(wsID, model.EventKindWorkspaceCreated)
		source.append(wsID, model.EventKindMessagePosted)
		third := source.append(wsID, model.EventKindTaskAdded)
		eventBus.Publish(ctx, third)

		Expect(collectSeqs(sub, 3)).To(Equal([]int64{1, 2, 3}))
	})

	It("signals resync when the cursor predates retained history", func() {
		for range 7 {
			source.append(wsID, model.EventKindMessagePosted)
		}
		// Retention kept only seqs 5-7; a cursor at 2 can no longer be
		// resumed without losing 3 and 4.
		source.pruneBefore(wsID, 5)

		sub := eventBus.Subscribe(ctx, wsID, 2)

		Eventually(sub.Events()).Should(BeClosed())
		Expect(collectSeqs(sub, 1)).To(BeEmpty())
		Expect(apperr.IsOverflow(sub.Err())).To(BeTrue())
	})

	It("resumes from a cursor still inside the retained window", func() {
		for range 7 {
			source.append(wsID, model.EventKindMessagePosted)
		}
		source.pruneBefore(wsID, 5)

		sub := eventBus.Subscribe(ctx, wsID, 4)
		defer sub.Close()

		Expect(collectSeqs(sub, 3)).To(Equal([]int64{5, 6, 7}))
	})

	It("drops only the overflowing subscriber", func() {
		small := bus.New(source, bus.Config{BufferSize: 2, ReplayPage: 10})

		// slow never reads; fast drains everything.
		slow := small.Subscribe(ctx, wsID, 0)
		fast := small.Subscribe(ctx, wsID, 0)
		defer fast.Close()

		var fastSeqs []int64
		done := make(chan struct{})
		go func() {
			defer close(done)
			fastSeqs = collectSeqs(fast, 5)
		}()

		for range 5 {
			small.Publish(ctx, source.append(wsID, model.EventKindMessagePosted))
			// Let the fast subscriber drain; only slow accumulates.
			time.Sleep(10 * time.Millisecond)
		}

		Eventually(slow.Events()).Should(BeClosed())
		Expect(apperr.IsOverflow(slow.Err())).To(BeTrue())

		<-done
		Expect(fastSeqs).To(Equal([]int64{1, 2, 3, 4, 5}))
		Expect(small.SubscriberCount(wsID)).To(Equal(1))
	})

	It("releases the registration synchronously on Close", func() {
		sub := eventBus.Subscribe(ctx, wsID, 0)
		Expect(eventBus.SubscriberCount(wsID)).To(Equal(1))

		sub.Close()
		Expect(eventBus.SubscriberCount(wsID)).To(BeZero())
		Eventually(sub.Events()).Should(BeClosed())
		Expect(sub.Err()).To(BeNil())
	})

	It("ends cleanly when the context is cancelled", func() {
		sub := eventBus.Subscribe(ctx, wsID, 0)
		cancel()

		Eventually(sub.Events()).Should(BeClosed())
		Expect(sub.Err()).To(BeNil())
	})

	It("does not leak events across workspaces", func() {
		sub := eventBus.Subscribe(ctx, wsID, 0)
		defer sub.Close()

		other := source.append(99, model.EventKindMessagePosted)
		eventBus.Publish(ctx, other)
		mine := source.append(wsID, model.EventKindMessagePosted)
		eventBus.Publish(ctx, mine)

		Expect(collectSeqs(sub, 1)).To(Equal([]int64{1}))
		Consistently(sub.Events(), 50*time.Millisecond).ShouldNot(Receive())
	})
})
