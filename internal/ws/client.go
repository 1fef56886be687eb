package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"collabsphere.app/server/common/logger"
	"collabsphere.app/server/internal/apperr"
	"collabsphere.app/server/internal/bus"
	"collabsphere.app/server/internal/model"
	"collabsphere.app/server/internal/service"
	"collabsphere.app/server/internal/session"
)

const (
	// writeWait bounds a single frame write to the peer.
	writeWait = 10 * time.Second

	// sendBuffer is the outbound frame queue per connection. A client that
	// cannot drain it is disconnected rather than allowed to stall the
	// event pump.
	sendBuffer = 256

	// frameEnvelope is the read-limit allowance for the id/kind wrapper
	// and JSON escaping around a payload at the content limit. Content
	// size itself is enforced by the gateway, which answers with a
	// validation error instead of closing the socket.
	frameEnvelope = 1024
)

// Client ties one websocket connection to a workspace: commands read off
// the socket are dispatched to the gateway, and the workspace event stream
// is written back. Pongs double as presence heartbeats.
type Client struct {
	conn     *websocket.Conn
	gateway  service.Gateway
	sessions *session.Manager
	sub      *bus.Subscription

	workspaceID  int64
	displayName  string
	connectionID string

	maxMessageBytes int64
	pongWait        time.Duration

	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once

	// lastSeq is written by the event pump and read during shutdown,
	// which any pump may trigger.
	lastSeq atomic.Int64
}

// Config carries the per-connection limits, taken from the collaboration
// config at wiring time.
type Config struct {
	MaxMessageBytes int64
	HeartbeatWindow time.Duration
}

func NewClient(conn *websocket.Conn, gateway service.Gateway, sessions *session.Manager, sub *bus.Subscription,
	workspaceID int64, displayName, connectionID string, cfg Config,
) *Client {
	return &Client{
		conn:            conn,
		gateway:         gateway,
		sessions:        sessions,
		sub:             sub,
		workspaceID:     workspaceID,
		displayName:     displayName,
		connectionID:    connectionID,
		maxMessageBytes: cfg.MaxMessageBytes,
		pongWait:        cfg.HeartbeatWindow,
		send:            make(chan []byte, sendBuffer),
		done:            make(chan struct{}),
	}
}

// Run serves the connection until the peer disconnects, the subscription
// ends, or ctx is cancelled. It blocks; the caller owns the goroutine.
func (c *Client) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		WorkspaceID:  logger.Ptr(c.workspaceID),
		ConnectionID: logger.Ptr(c.connectionID),
		DisplayName:  logger.Ptr(c.displayName),
		Component:    "collab.ws",
	})

	go c.writePump(ctx)
	go c.eventPump(ctx)
	c.readPump(ctx)
	c.shutdown(ctx)
}

func (c *Client) shutdown(ctx context.Context) {
	c.stopOnce.Do(func() {
		close(c.done)
		c.sub.Close()
		c.sessions.Leave(ctx, c.connectionID)
		_ = c.conn.Close()
		slog.InfoContext(ctx, "connection closed", "last_seq", c.lastSeq.Load())
	})
}

// readPump decodes command frames and dispatches them to the gateway. Each
// frame is answered with an ack or error carrying the client's correlation
// id, independent of the event stream.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(c.maxMessageBytes + frameEnvelope)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		if err := c.sessions.Heartbeat(c.connectionID); err != nil {
			return err
		}
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "read failed", "error", err)
			}
			return
		}

		var frame CommandFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.enqueue(ctx, encodeError("", apperr.Wrap(apperr.KindValidation, err, "malformed command frame")))
			continue
		}

		result, err := c.dispatch(ctx, frame)
		if err != nil {
			c.enqueue(ctx, encodeError(frame.ID, err))
			continue
		}
		c.enqueue(ctx, encodeAck(frame.ID, result))
	}
}

func (c *Client) dispatch(ctx context.Context, frame CommandFrame) (any, error) {
	if !frame.Kind.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown command kind %q", frame.Kind)
	}

	switch frame.Kind {
	case CommandPostMessage:
		var p PostMessagePayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return c.gateway.PostMessage(ctx, c.workspaceID, c.displayName, p.Text)

	case CommandAddTask:
		var p AddTaskPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return c.gateway.AddTask(ctx, c.workspaceID, p.Description, p.Assignee)

	case CommandCompleteTask:
		var p CompleteTaskPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return c.gateway.CompleteTask(ctx, c.workspaceID, p.TaskID)

	case CommandUpdateNotes:
		var p UpdateNotesPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return c.gateway.UpdateNotes(ctx, c.workspaceID, p.Content, p.ExpectedVersion)

	case CommandAwardPoints:
		var p AwardPointsPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return c.gateway.AwardPoints(ctx, c.workspaceID, p.DisplayName, p.Amount)
	}

	return nil, apperr.Newf(apperr.KindValidation, "unknown command kind %q", frame.Kind)
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return apperr.New(apperr.KindValidation, "command payload is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "malformed command payload")
	}
	return nil
}

// eventPump drains the bus subscription into event frames. When the
// subscription ends with an overflow the client gets a resync frame so it
// can snapshot and resubscribe from the last sequence it saw.
func (c *Client) eventPump(ctx context.Context) {
	for ev := range c.sub.Events() {
		c.lastSeq.Store(ev.Seq)
		if !c.enqueue(ctx, encodeEvent(ev)) {
			return
		}
		if ev.Kind == model.EventKindWorkspaceArchived {
			// Archived workspaces accept no further commands; let the
			// frame flush and drop the connection.
			break
		}
	}

	if err := c.sub.Err(); err != nil {
		switch {
		case apperr.IsOverflow(err):
			last := c.lastSeq.Load()
			slog.WarnContext(ctx, "subscriber overflow, requesting resync", "last_seq", last)
			c.enqueue(ctx, encodeResync(last, "buffer overflow"))
		default:
			slog.ErrorContext(ctx, "subscription failed", "error", err)
			c.enqueue(ctx, encodeError("", err))
		}
	}

	// Give the write pump a moment to flush, then tear down.
	time.Sleep(writeWait / 10)
	c.shutdown(ctx)
}

// enqueue hands a frame to the write pump. A full queue means the client
// is not keeping up; the connection is torn down rather than blocking.
func (c *Client) enqueue(ctx context.Context, frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		slog.WarnContext(ctx, "outbound queue full, dropping connection")
		c.shutdown(ctx)
		return false
	}
}

// writePump owns all writes to the websocket. Pings go out often enough
// that a live client's pongs keep its presence heartbeat fresh.
func (c *Client) writePump(ctx context.Context) {
	pingPeriod := c.pongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.shutdown(ctx)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(ctx)
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
