package session_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/session"
)

type presenceEvent struct {
	workspaceID int64
	displayName string
	kind        string // "joined" or "left"
	reason      string
}

// recordingEmitter captures presence events the manager pushes into the
// durable stream.
type recordingEmitter struct {
	mu      sync.Mutex
	events  []presenceEvent
	joinErr error
}

func (e *recordingEmitter) MemberJoined(_ context.Context, workspaceID int64, displayName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.joinErr != nil {
		return e.joinErr
	}
	e.events = append(e.events, presenceEvent{workspaceID, displayName, "joined", ""})
	return nil
}

func (e *recordingEmitter) MemberLeft(_ context.Context, workspaceID int64, displayName, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, presenceEvent{workspaceID, displayName, "left", reason})
	return nil
}

func (e *recordingEmitter) recorded() []presenceEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]presenceEvent, len(e.events))
	copy(out, e.events)
	return out
}

var _ = Describe("Manager", func() {
	var (
		ctx     context.Context
		emitter *recordingEmitter
		manager *session.Manager
	)

	const wsID int64 = 3

	BeforeEach(func() {
		ctx = context.Background()
		emitter = &recordingEmitter{}
		manager = session.NewManager(emitter, session.Config{
			HeartbeatWindow: 50 * time.Millisecond,
			SweepInterval:   10 * time.Millisecond,
		})
	})

	Describe("Join", func() {
		It("registers the member and emits a join event", func() {
			member, err := manager.Join(ctx, wsID, "ana", "conn-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(member.DisplayName).To(Equal("ana"))

			Expect(manager.Members(wsID)).To(HaveLen(1))
			Expect(emitter.recorded()).To(ConsistOf(
				presenceEvent{wsID, "ana", "joined", ""},
			))
		})

		It("rejects a display name already active in the workspace", func() {
			_, err := manager.Join(ctx, wsID, "ana", "conn-1")
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.Join(ctx, wsID, "ana", "conn-2")
			Expect(apperr.IsConflict(err)).To(BeTrue())
			Expect(manager.Members(wsID)).To(HaveLen(1))
		})

		It("allows the same display name in different workspaces", func() {
			_, err := manager.Join(ctx, wsID, "ana", "conn-1")
			Expect(err).NotTo(HaveOccurred())
			_, err = manager.Join(ctx, wsID+1, "ana", "conn-2")
			Expect(err).NotTo(HaveOccurred())
		})

		It("rolls back the registration when the join event cannot be recorded", func() {
			emitter.joinErr = errors.New("stream append failed")

			_, err := manager.Join(ctx, wsID, "ana", "conn-1")
			Expect(err).To(HaveOccurred())
			Expect(manager.Members(wsID)).To(BeEmpty())

			// The name is free again.
			emitter.joinErr = nil
			_, err = manager.Join(ctx, wsID, "ana", "conn-2")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Leave", func() {
		It("removes the member and emits a leave event", func() {
			_, err := manager.Join(ctx, wsID, "ana", "conn-1")
			Expect(err).NotTo(HaveOccurred())

			manager.Leave(ctx, "conn-1")

			Expect(manager.Members(wsID)).To(BeEmpty())
			events := emitter.recorded()
			Expect(events[len(events)-1]).To(Equal(presenceEvent{wsID, "ana", "left", "left"}))
		})

		It("ignores unknown connections", func() {
			manager.Leave(ctx, "nope")
			Expect(emitter.recorded()).To(BeEmpty())
		})
	})

	Describe("Heartbeat", func() {
		It("fails for an unregistered connection", func() {
			err := manager.Heartbeat("nope")
			Expect(apperr.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("sweeper", func() {
		It("evicts members whose heartbeat lapsed and records a timeout", func() {
			go manager.Run(ctx)
			defer manager.Stop()

			_, err := manager.Join(ctx, wsID, "ana", "conn-1")
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int {
				return len(manager.Members(wsID))
			}, time.Second, 10*time.Millisecond).Should(BeZero())

			Eventually(func() []presenceEvent {
				return emitter.recorded()
			}, time.Second, 10*time.Millisecond).Should(ContainElement(
				presenceEvent{wsID, "ana", "left", "timeout"},
			))
		})

		It("keeps members alive while heartbeats arrive", func() {
			go manager.Run(ctx)
			defer manager.Stop()

			_, err := manager.Join(ctx, wsID, "ana", "conn-1")
			Expect(err).NotTo(HaveOccurred())

			for range 10 {
				Expect(manager.Heartbeat("conn-1")).To(Succeed())
				time.Sleep(10 * time.Millisecond)
			}
			Expect(manager.Members(wsID)).To(HaveLen(1))
		})
	})
})
