package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/http/handler"
	"collabsphere.app/server/internal/model"
	"collabsphere.app/server/internal/service"
)

var _ = Describe("WorkspaceHandler", func() {
	var (
		router    *gin.Engine
		gateway   *mockGateway
		snapshots *mockSnapshots
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		gateway = &mockGateway{}
		snapshots = &mockSnapshots{}
		h := handler.NewWorkspaceHandler(gateway, snapshots)
		router.POST("/workspaces", h.Create)
		router.GET("/workspaces", h.List)
		router.POST("/workspaces/:id/archive", h.Archive)
		router.GET("/workspaces/:id/snapshot", h.Snapshot)
		router.GET("/workspaces/:id/events", h.Events)
	})

	Describe("Create", func() {
		It("returns 201 with the new workspace", func() {
			gateway.createWorkspaceFn = func(_ context.Context, name string) (*model.Workspace, error) {
				return &model.Workspace{ID: 7, Name: name, Slug: "alpha-team", CreatedAt: time.Now()}, nil
			}

			body, _ := json.Marshal(map[string]string{"name": "Alpha Team"})
			req := httptest.NewRequest(http.MethodPost, "/workspaces", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusCreated))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["slug"]).To(Equal("alpha-team"))
			Expect(resp["id"]).To(Equal("7"))
		})

		It("returns 400 on a missing name", func() {
			req := httptest.NewRequest(http.MethodPost, "/workspaces", bytes.NewBufferString(`{}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 409 when the name is taken", func() {
			gateway.createWorkspaceFn = func(context.Context, string) (*model.Workspace, error) {
				return nil, apperr.New(apperr.KindConflict, "workspace name is already taken")
			}

			body, _ := json.Marshal(map[string]string{"name": "Alpha"})
			req := httptest.NewRequest(http.MethodPost, "/workspaces", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("Archive", func() {
		It("returns 204 on success", func() {
			gateway.archiveWorkspaceFn = func(_ context.Context, id int64) error {
				Expect(id).To(Equal(int64(7)))
				return nil
			}

			req := httptest.NewRequest(http.MethodPost, "/workspaces/7/archive", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNoContent))
		})

		It("returns 422 when the workspace is already archived", func() {
			gateway.archiveWorkspaceFn = func(context.Context, int64) error {
				return apperr.New(apperr.KindInvalidState, "workspace is archived")
			}

			req := httptest.NewRequest(http.MethodPost, "/workspaces/7/archive", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		})

		It("returns 400 on a malformed id", func() {
			req := httptest.NewRequest(http.MethodPost, "/workspaces/abc/archive", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Snapshot", func() {
		It("returns the full state with last_seq", func() {
			snapshots.snapshotFn = func(_ context.Context, id int64) (*service.Snapshot, error) {
				return &service.Snapshot{
					Workspace: model.Workspace{ID: id, Name: "Alpha", Slug: "alpha"},
					Note:      model.Note{WorkspaceID: id, Content: "notes", Version: 3},
					Messages:  []model.ChatMessage{{ID: 1, Sender: "ana", Text: "hi"}},
					LastSeq:   9,
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/workspaces/7/snapshot", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["last_seq"]).To(BeEquivalentTo(9))
			note := resp["note"].(map[string]any)
			Expect(note["version"]).To(BeEquivalentTo(3))
		})

		It("returns 404 for an unknown workspace", func() {
			snapshots.snapshotFn = func(context.Context, int64) (*service.Snapshot, error) {
				return nil, apperr.New(apperr.KindNotFound, "workspace not found")
			}

			req := httptest.NewRequest(http.MethodGet, "/workspaces/7/snapshot", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Events", func() {
		It("passes the cursor through and returns events", func() {
			snapshots.eventsFn = func(_ context.Context, id, fromSeq int64, limit int32) ([]model.Event, error) {
				Expect(fromSeq).To(Equal(int64(4)))
				Expect(limit).To(Equal(int32(500)))
				return []model.Event{
					{WorkspaceID: id, Seq: 5, Kind: model.EventKindMessagePosted, Payload: json.RawMessage(`{}`)},
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/workspaces/7/events?from=4", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Events []map[string]any `json:"events"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Events).To(HaveLen(1))
			Expect(resp.Events[0]["seq"]).To(BeEquivalentTo(5))
		})

		It("rejects a negative cursor", func() {
			req := httptest.NewRequest(http.MethodGet, "/workspaces/7/events?from=-1", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
