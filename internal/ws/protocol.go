package ws

import (
	"encoding/json"
	"fmt"

	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/model"
)

// CommandKind tags an inbound client frame with the mutation it requests.
type CommandKind string

const (
	CommandPostMessage  CommandKind = "post_message"
	CommandAddTask      CommandKind = "add_task"
	CommandCompleteTask CommandKind = "complete_task"
	CommandUpdateNotes  CommandKind = "update_notes"
	CommandAwardPoints  CommandKind = "award_points"
)

func (k CommandKind) Valid() bool {
	switch k {
	case CommandPostMessage, CommandAddTask, CommandCompleteTask,
		CommandUpdateNotes, CommandAwardPoints:
		return true
	}
	return false
}

// CommandFrame is one client-issued command. ID is a client-chosen
// correlation token echoed back on the ack or error.
type CommandFrame struct {
	ID      string          `json:"id"`
	Kind    CommandKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type PostMessagePayload struct {
	Text string `json:"text"`
}

type AddTaskPayload struct {
	Description string  `json:"description"`
	Assignee    *string `json:"assignee,omitempty"`
}

type CompleteTaskPayload struct {
	TaskID int64 `json:"task_id"`
}

type UpdateNotesPayload struct {
	Content         string `json:"content"`
	ExpectedVersion int64  `json:"expected_version"`
}

type AwardPointsPayload struct {
	DisplayName string `json:"display_name"`
	Amount      int64  `json:"amount"`
}

const (
	frameAck    = "ack"
	frameError  = "error"
	frameEvent  = "event"
	frameResync = "resync"
)

type ackFrame struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type eventFrame struct {
	Type        string          `json:"type"`
	WorkspaceID int64           `json:"workspace_id"`
	Seq         int64           `json:"seq"`
	Kind        model.EventKind `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
}

// resyncFrame tells the client its subscription was dropped (buffer
// overflow). The client should fetch a snapshot or replay and resubscribe
// from LastDelivered.
type resyncFrame struct {
	Type          string `json:"type"`
	LastDelivered int64  `json:"last_delivered"`
	Reason        string `json:"reason"`
}

func encodeAck(id string, result any) []byte {
	return mustEncode(ackFrame{Type: frameAck, ID: id, Result: result})
}

func encodeError(id string, err error) []byte {
	code := string(apperr.KindOf(err))
	msg := err.Error()
	if code == "" {
		code = "internal"
		msg = "command failed"
	}
	return mustEncode(errorFrame{Type: frameError, ID: id, Code: code, Message: msg})
}

func encodeEvent(ev model.Event) []byte {
	return mustEncode(eventFrame{
		Type:        frameEvent,
		WorkspaceID: ev.WorkspaceID,
		Seq:         ev.Seq,
		Kind:        ev.Kind,
		Payload:     ev.Payload,
	})
}

func encodeResync(lastDelivered int64, reason string) []byte {
	return mustEncode(resyncFrame{Type: frameResync, LastDelivered: lastDelivered, Reason: reason})
}

func mustEncode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Frames are built from our own types; failure is a programming error.
		panic(fmt.Sprintf("encoding frame: %v", err))
	}
	return data
}
