package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/bus"
	"collabsphere.app/server/internal/model"
	"collabsphere.app/server/internal/service"
)

type fixedPresence struct {
	members []model.Member
}

func (p *fixedPresence) Members(int64) []model.Member { return p.members }

var _ = Describe("SnapshotService", func() {
	var (
		ctx       context.Context
		stores    *memStores
		gateway   service.Gateway
		presence  *fixedPresence
		snapshots service.SnapshotService
	)

	BeforeEach(func() {
		ctx = context.Background()
		stores = newMemStores()
		tx := &memTxRunner{stores: stores}
		eventBus := bus.New(stores.Events(), bus.Config{BufferSize: 64})
		gateway = service.NewGateway(tx, eventBus, &recordingPublisher{}, service.GatewayConfig{
			MaxMessageBytes: 4096,
			StoreRetries:    1,
			RetryBaseDelay:  time.Millisecond,
		})
		presence = &fixedPresence{}
		snapshots = service.NewSnapshotService(stores, presence, 3)
	})

	It("captures workspace state together with the last event sequence", func() {
		ws, err := gateway.CreateWorkspace(ctx, "Alpha")
		Expect(err).NotTo(HaveOccurred())
		_, err = gateway.PostMessage(ctx, ws.ID, "ana", "hello")
		Expect(err).NotTo(HaveOccurred())
		task, err := gateway.AddTask(ctx, ws.ID, "ship it", nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = gateway.AwardPoints(ctx, ws.ID, "ana", 5)
		Expect(err).NotTo(HaveOccurred())

		presence.members = []model.Member{{WorkspaceID: ws.ID, DisplayName: "ana"}}

		snap, err := snapshots.Snapshot(ctx, ws.ID)
		Expect(err).NotTo(HaveOccurred())

		Expect(snap.Workspace.ID).To(Equal(ws.ID))
		Expect(snap.Tasks).To(HaveLen(1))
		Expect(snap.Tasks[0].ID).To(Equal(task.ID))
		Expect(snap.Messages).To(HaveLen(1))
		Expect(snap.Leaderboard).To(HaveLen(1))
		Expect(snap.Members).To(HaveLen(1))
		Expect(snap.LastSeq).To(Equal(int64(4)))
	})

	It("limits the snapshot to the most recent messages", func() {
		ws, err := gateway.CreateWorkspace(ctx, "Alpha")
		Expect(err).NotTo(HaveOccurred())
		for _, text := range []string{"one", "two", "three", "four", "five"} {
			_, err := gateway.PostMessage(ctx, ws.ID, "ana", text)
			Expect(err).NotTo(HaveOccurred())
		}

		snap, err := snapshots.Snapshot(ctx, ws.ID)
		Expect(err).NotTo(HaveOccurred())

		Expect(snap.Messages).To(HaveLen(3))
		Expect(snap.Messages[0].Text).To(Equal("three"))
		Expect(snap.Messages[2].Text).To(Equal("five"))
	})

	It("is NotFound for an unknown workspace", func() {
		_, err := snapshots.Snapshot(ctx, 424242)
		Expect(apperr.IsNotFound(err)).To(BeTrue())

		_, err = snapshots.Events(ctx, 424242, 0, 10)
		Expect(apperr.IsNotFound(err)).To(BeTrue())
	})

	It("pages historical events from an exclusive cursor", func() {
		ws, err := gateway.CreateWorkspace(ctx, "Alpha")
		Expect(err).NotTo(HaveOccurred())
		for _, text := range []string{"one", "two", "three"} {
			_, err := gateway.PostMessage(ctx, ws.ID, "ana", text)
			Expect(err).NotTo(HaveOccurred())
		}

		evs, err := snapshots.Events(ctx, ws.ID, 2, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(evs).To(HaveLen(2))
		Expect(evs[0].Seq).To(Equal(int64(3)))
		Expect(evs[1].Seq).To(Equal(int64(4)))
	})
})
