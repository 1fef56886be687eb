package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"collabsphere.app/server/common"
	"collabsphere.app/server/common/id"
	"collabsphere.app/server/common/logger"
	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/bus"
	"collabsphere.app/server/internal/model"
	"collabsphere.app/server/internal/queue"
)

// Gateway is the sole entry point for state-changing operations. Every
// command validates its input, applies exactly one store mutation together
// with one event append in a single transaction, and publishes the event
// only after commit.
type Gateway interface {
	CreateWorkspace(ctx context.Context, name string) (*model.Workspace, error)
	ArchiveWorkspace(ctx context.Context, workspaceID int64) error
	PostMessage(ctx context.Context, workspaceID int64, sender, text string) (*model.ChatMessage, error)
	AddTask(ctx context.Context, workspaceID int64, description string, assignee *string) (*model.Task, error)
	CompleteTask(ctx context.Context, workspaceID, taskID int64) (*model.Task, error)
	UpdateNotes(ctx context.Context, workspaceID int64, content string, expectedVersion int64) (*model.Note, error)
	AwardPoints(ctx context.Context, workspaceID int64, displayName string, amount int64) (*model.LeaderboardEntry, error)

	// Presence events from the session manager flow through the same
	// ordered stream as content mutations.
	MemberJoined(ctx context.Context, workspaceID int64, displayName string) error
	MemberLeft(ctx context.Context, workspaceID int64, displayName, reason string) error
}

type GatewayConfig struct {
	MaxMessageBytes int
	StoreRetries    int
	RetryBaseDelay  time.Duration
}

type commandGateway struct {
	tx        TxRunner
	bus       *bus.Bus
	publisher queue.Publisher
	cfg       GatewayConfig

	// One mutex per workspace: mutations to the same workspace serialize,
	// different workspaces proceed in parallel.
	locks sync.Map // int64 → *sync.Mutex
}

func NewGateway(tx TxRunner, b *bus.Bus, publisher queue.Publisher, cfg GatewayConfig) Gateway {
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 4096
	}
	if cfg.StoreRetries <= 0 {
		cfg.StoreRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 100 * time.Millisecond
	}
	return &commandGateway{
		tx:        tx,
		bus:       b,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (g *commandGateway) CreateWorkspace(ctx context.Context, name string) (*model.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.KindValidation, "workspace name must not be empty")
	}
	slug, err := common.Slugify(name)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "workspace name is not sluggable")
	}

	ws := &model.Workspace{
		ID:   id.New(),
		Name: name,
		Slug: slug,
	}

	_, err = g.apply(ctx, ws.ID, model.EventKindWorkspaceCreated, func(st StoreProvider) (json.RawMessage, error) {
		if existing, err := st.Workspaces().GetBySlug(ctx, slug); err == nil {
			return nil, apperr.Newf(apperr.KindConflict,
				"workspace name %q is already taken (workspace %d)", name, existing.ID)
		} else if !apperr.IsNotFound(err) {
			return nil, err
		}
		if err := st.Workspaces().Create(ctx, ws); err != nil {
			return nil, err
		}
		// Each workspace starts with an empty note at version 0.
		if err := st.Notes().Create(ctx, ws.ID); err != nil {
			return nil, err
		}
		return marshalPayload(workspaceCreatedPayload{Name: ws.Name, Slug: ws.Slug})
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "workspace created", "workspace_id", ws.ID, "slug", ws.Slug)
	return ws, nil
}

func (g *commandGateway) ArchiveWorkspace(ctx context.Context, workspaceID int64) error {
	_, err := g.apply(ctx, workspaceID, model.EventKindWorkspaceArchived, func(st StoreProvider) (json.RawMessage, error) {
		ws, err := g.activeWorkspace(ctx, st, workspaceID)
		if err != nil {
			return nil, err
		}
		if err := st.Workspaces().Archive(ctx, workspaceID, time.Now()); err != nil {
			return nil, err
		}
		return marshalPayload(workspaceArchivedPayload{Name: ws.Name})
	})
	return err
}

func (g *commandGateway) PostMessage(ctx context.Context, workspaceID int64, sender, text string) (*model.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.KindValidation, "message text must not be empty")
	}
	if len(text) > g.cfg.MaxMessageBytes {
		return nil, apperr.Newf(apperr.KindValidation,
			"message of %d bytes exceeds limit of %d", len(text), g.cfg.MaxMessageBytes)
	}
	if sender == "" {
		return nil, apperr.New(apperr.KindValidation, "message sender must not be empty")
	}

	msg := &model.ChatMessage{
		WorkspaceID: workspaceID,
		Sender:      sender,
		Text:        text,
	}

	_, err := g.apply(ctx, workspaceID, model.EventKindMessagePosted, func(st StoreProvider) (json.RawMessage, error) {
		if _, err := g.activeWorkspace(ctx, st, workspaceID); err != nil {
			return nil, err
		}
		if err := st.Messages().Create(ctx, msg); err != nil {
			return nil, err
		}
		return marshalPayload(messagePostedPayload{
			MessageID: msg.ID,
			Sender:    msg.Sender,
			Text:      msg.Text,
		})
	})
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "message posted",
		"message_id", msg.ID, "sender", msg.Sender, "text", logger.Truncate(msg.Text, 80))
	return msg, nil
}

func (g *commandGateway) AddTask(ctx context.Context, workspaceID int64, description string, assignee *string) (*model.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperr.New(apperr.KindValidation, "task description must not be empty")
	}

	task := &model.Task{
		ID:          id.New(),
		WorkspaceID: workspaceID,
		Description: description,
		Status:      model.TaskStatusPending,
		Assignee:    assignee,
	}

	_, err := g.apply(ctx, workspaceID, model.EventKindTaskAdded, func(st StoreProvider) (json.RawMessage, error) {
		if _, err := g.activeWorkspace(ctx, st, workspaceID); err != nil {
			return nil, err
		}
		if err := st.Tasks().Create(ctx, task); err != nil {
			return nil, err
		}
		return marshalPayload(taskAddedPayload{
			TaskID:      task.ID,
			Description: task.Description,
			Assignee:    task.Assignee,
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (g *commandGateway) CompleteTask(ctx context.Context, workspaceID, taskID int64) (*model.Task, error) {
	var task *model.Task

	_, err := g.apply(ctx, workspaceID, model.EventKindTaskCompleted, func(st StoreProvider) (json.RawMessage, error) {
		if _, err := g.activeWorkspace(ctx, st, workspaceID); err != nil {
			return nil, err
		}
		completed, err := st.Tasks().Complete(ctx, workspaceID, taskID, time.Now())
		if err != nil {
			return nil, err
		}
		task = completed
		return marshalPayload(taskCompletedPayload{TaskID: taskID})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (g *commandGateway) UpdateNotes(ctx context.Context, workspaceID int64, content string, expectedVersion int64) (*model.Note, error) {
	if expectedVersion < 0 {
		return nil, apperr.New(apperr.KindValidation, "expected version must not be negative")
	}

	var note *model.Note

	_, err := g.apply(ctx, workspaceID, model.EventKindNotesUpdated, func(st StoreProvider) (json.RawMessage, error) {
		if _, err := g.activeWorkspace(ctx, st, workspaceID); err != nil {
			return nil, err
		}
		updated, err := st.Notes().Update(ctx, workspaceID, content, expectedVersion)
		if err != nil {
			return nil, err
		}
		note = updated
		return marshalPayload(notesUpdatedPayload{
			Content: updated.Content,
			Version: updated.Version,
		})
	})
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "notes updated",
		"version", note.Version, "content", logger.Truncate(note.Content, 80))
	return note, nil
}

func (g *commandGateway) AwardPoints(ctx context.Context, workspaceID int64, displayName string, amount int64) (*model.LeaderboardEntry, error) {
	if displayName == "" {
		return nil, apperr.New(apperr.KindValidation, "display name must not be empty")
	}
	if amount <= 0 {
		return nil, apperr.Newf(apperr.KindValidation, "point amount must be positive, got %d", amount)
	}

	var entry *model.LeaderboardEntry

	_, err := g.apply(ctx, workspaceID, model.EventKindPointsAwarded, func(st StoreProvider) (json.RawMessage, error) {
		if _, err := g.activeWorkspace(ctx, st, workspaceID); err != nil {
			return nil, err
		}
		updated, err := st.Leaderboard().AddPoints(ctx, workspaceID, displayName, amount)
		if err != nil {
			return nil, err
		}
		entry = updated
		return marshalPayload(pointsAwardedPayload{
			DisplayName: displayName,
			Amount:      amount,
			Total:       updated.Points,
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (g *commandGateway) MemberJoined(ctx context.Context, workspaceID int64, displayName string) error {
	_, err := g.apply(ctx, workspaceID, model.EventKindMemberJoined, func(st StoreProvider) (json.RawMessage, error) {
		if _, err := g.activeWorkspace(ctx, st, workspaceID); err != nil {
			return nil, err
		}
		return marshalPayload(memberPayload{DisplayName: displayName})
	})
	return err
}

func (g *commandGateway) MemberLeft(ctx context.Context, workspaceID int64, displayName, reason string) error {
	_, err := g.apply(ctx, workspaceID, model.EventKindMemberLeft, func(st StoreProvider) (json.RawMessage, error) {
		if _, err := g.activeWorkspace(ctx, st, workspaceID); err != nil {
			return nil, err
		}
		return marshalPayload(memberPayload{DisplayName: displayName, Reason: reason})
	})
	return err
}

// apply runs one command under the workspace's mutation lock: the mutation
// callback and the event append share a transaction, and the bus sees the
// event only after commit. Unavailable store errors are retried with
// backoff; everything else surfaces to the caller immediately.
func (g *commandGateway) apply(ctx context.Context, workspaceID int64, kind model.EventKind, fn func(st StoreProvider) (json.RawMessage, error)) (*model.Event, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		WorkspaceID: logger.Ptr(workspaceID),
		EventKind:   logger.Ptr(string(kind)),
		Component:   "collab.gateway",
	})

	lock := g.workspaceLock(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	var ev *model.Event
	err := g.withRetry(ctx, func() error {
		return g.tx.WithTx(ctx, func(st StoreProvider) error {
			payload, err := fn(st)
			if err != nil {
				return err
			}
			appended, err := st.Events().Append(ctx, workspaceID, kind, payload)
			if err != nil {
				return err
			}
			ev = appended
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	g.bus.Publish(ctx, *ev)
	if err := g.publisher.Publish(ctx, *ev); err != nil {
		// Local subscribers got the event; peers recover via gap fill on
		// the next relayed sequence.
		slog.WarnContext(ctx, "failed to relay event to peers", "seq", ev.Seq, "error", err)
	}
	return ev, nil
}

func (g *commandGateway) withRetry(ctx context.Context, fn func() error) error {
	delay := g.cfg.RetryBaseDelay

	var err error
	for attempt := 1; attempt <= g.cfg.StoreRetries; attempt++ {
		err = fn()
		if err == nil || !apperr.IsUnavailable(err) {
			return err
		}
		if attempt == g.cfg.StoreRetries {
			break
		}

		slog.WarnContext(ctx, "store unavailable, retrying command",
			"attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func (g *commandGateway) activeWorkspace(ctx context.Context, st StoreProvider, workspaceID int64) (*model.Workspace, error) {
	ws, err := st.Workspaces().GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws.Archived() {
		return nil, apperr.Newf(apperr.KindInvalidState, "workspace %d is archived", workspaceID)
	}
	return ws, nil
}

func (g *commandGateway) workspaceLock(workspaceID int64) *sync.Mutex {
	if lock, ok := g.locks.Load(workspaceID); ok {
		return lock.(*sync.Mutex)
	}
	lock, _ := g.locks.LoadOrStore(workspaceID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func marshalPayload(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "encoding event payload")
	}
	return data, nil
}

type workspaceCreatedPayload struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type workspaceArchivedPayload struct {
	Name string `json:"name"`
}

type messagePostedPayload struct {
	MessageID int64  `json:"message_id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
}

type taskAddedPayload struct {
	TaskID      int64   `json:"task_id"`
	Description string  `json:"description"`
	Assignee    *string `json:"assignee,omitempty"`
}

type taskCompletedPayload struct {
	TaskID int64 `json:"task_id"`
}

type notesUpdatedPayload struct {
	Content string `json:"content"`
	Version int64  `json:"version"`
}

type pointsAwardedPayload struct {
	DisplayName string `json:"display_name"`
	Amount      int64  `json:"amount"`
	Total       int64  `json:"total"`
}

type memberPayload struct {
	DisplayName string `json:"display_name"`
	Reason      string `json:"reason,omitempty"`
}
