package dto

import (
	"encoding/json"
	"time"

	"collabsphere.app/server/internal/model"
	"collabsphere.app/server/internal/service"
)

type NoteResponse struct {
	Content   string    `json:"content"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TaskResponse struct {
	ID          int64      `json:"id,string"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Assignee    *string    `json:"assignee,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type MessageResponse struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type LeaderboardEntryResponse struct {
	DisplayName string `json:"display_name"`
	Points      int64  `json:"points"`
}

type MemberResponse struct {
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

type SnapshotResponse struct {
	Workspace   *WorkspaceResponse         `json:"workspace"`
	Note        NoteResponse               `json:"note"`
	Tasks       []TaskResponse             `json:"tasks"`
	Messages    []MessageResponse          `json:"messages"`
	Leaderboard []LeaderboardEntryResponse `json:"leaderboard"`
	Members     []MemberResponse           `json:"members"`
	LastSeq     int64                      `json:"last_seq"`
}

func ToSnapshotResponse(s *service.Snapshot) *SnapshotResponse {
	resp := &SnapshotResponse{
		Workspace: ToWorkspaceResponse(&s.Workspace),
		Note: NoteResponse{
			Content:   s.Note.Content,
			Version:   s.Note.Version,
			UpdatedAt: s.Note.UpdatedAt,
		},
		Tasks:       make([]TaskResponse, 0, len(s.Tasks)),
		Messages:    make([]MessageResponse, 0, len(s.Messages)),
		Leaderboard: make([]LeaderboardEntryResponse, 0, len(s.Leaderboard)),
		Members:     make([]MemberResponse, 0, len(s.Members)),
		LastSeq:     s.LastSeq,
	}
	for _, t := range s.Tasks {
		resp.Tasks = append(resp.Tasks, TaskResponse{
			ID:          t.ID,
			Description: t.Description,
			Status:      string(t.Status),
			Assignee:    t.Assignee,
			CreatedAt:   t.CreatedAt,
			CompletedAt: t.CompletedAt,
		})
	}
	for _, m := range s.Messages {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:        m.ID,
			Sender:    m.Sender,
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		})
	}
	for _, e := range s.Leaderboard {
		resp.Leaderboard = append(resp.Leaderboard, LeaderboardEntryResponse{
			DisplayName: e.DisplayName,
			Points:      e.Points,
		})
	}
	for _, m := range s.Members {
		resp.Members = append(resp.Members, MemberResponse{
			DisplayName: m.DisplayName,
			JoinedAt:    m.JoinedAt,
			LastSeenAt:  m.LastSeenAt,
		})
	}
	return resp
}

type EventResponse struct {
	Seq       int64           `json:"seq"`
	Kind      model.EventKind `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func ToEventListResponse(events []model.Event) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, ev := range events {
		out[i] = EventResponse{
			Seq:       ev.Seq,
			Kind:      ev.Kind,
			Payload:   ev.Payload,
			CreatedAt: ev.CreatedAt,
		}
	}
	return out
}
