package audit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"forensic_audit/pkg/core/ingest"
	"forensic_audit/pkg/core/pipeline"
)

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
)

// Client actions.
const (
	ActionScore  = "score"
	ActionUpload = "upload"
	ActionReset  = "reset"
)

// Server statuses.
const (
	StatusProgress      = "progress"
	StatusFileProcessed = "file_processed"
	StatusResetDone     = "reset_completed"
)

// ClientMessage is one request on the audit socket.
type ClientMessage struct {
	Action      string          `json:"action"`
	Filename    string          `json:"filename,omitempty"`
	Content     string          `json:"content,omitempty"` // base64 file bytes for "upload"
	Records     json.RawMessage `json:"records,omitempty"` // any shape ingest.DecodeJSON accepts
	FillMissing *bool           `json:"fill_missing,omitempty"`
}

// ServerMessage is one reply on the audit socket. Errors carry only Error.
type ServerMessage struct {
	Status  string          `json:"status,omitempty"`
	Event   *pipeline.Event `json:"event,omitempty"`
	Results any             `json:"results,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// keepAlive pings every period until ctx ends or a ping fails.
func (c *wsConn) keepAlive(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// HandleWebSocket upgrades the request and serves audit actions until the
// client disconnects. Requests on one connection run one at a time.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(h.opts.AllowedOrigins),
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	// base64 inflates uploads by 4/3.
	conn.SetReadLimit(h.opts.MaxUploadBytes*4/3 + 4096)
	pongWait := h.opts.PongWait
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c := &wsConn{conn: conn}
	// Pings must land well inside pongWait for the pong to extend the deadline.
	go c.keepAlive(ctx, pongWait*9/10)
	h.log.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Info("websocket closed", zap.Error(err))
			}
			return
		}
		reply := h.dispatch(ctx, c, msg)
		// Pongs are only handled while reading, so a long dispatch must not
		// count against the idle deadline.
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := c.send(reply); err != nil {
			h.log.Info("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, c *wsConn, msg ClientMessage) ServerMessage {
	switch msg.Action {
	case ActionReset:
		return ServerMessage{Status: StatusResetDone}

	case ActionScore:
		fill := h.opts.FillMissing
		if msg.FillMissing != nil {
			fill = *msg.FillMissing
		}
		records, err := ingest.DecodeJSON(msg.Records, ingest.Options{FillMissing: fill})
		if err != nil {
			return ServerMessage{Error: err.Error()}
		}
		scores, err := h.pipeline.Score(records)
		if err != nil {
			return ServerMessage{Error: err.Error()}
		}
		return ServerMessage{Status: StatusFileProcessed, Results: scores}

	case ActionUpload:
		data, err := base64.StdEncoding.DecodeString(msg.Content)
		if err != nil {
			return ServerMessage{Error: fmt.Sprintf("content is not valid base64: %v", err)}
		}
		if int64(len(data)) > h.opts.MaxUploadBytes {
			return ServerMessage{Error: fmt.Sprintf("file exceeds %d bytes", h.opts.MaxUploadBytes)}
		}
		emit := func(e pipeline.Event) {
			if e.Step == pipeline.StepComplete || e.Step == pipeline.StepError {
				return
			}
			ev := e
			_ = c.send(ServerMessage{Status: StatusProgress, Event: &ev})
		}
		res, err := h.pipeline.Run(ctx, pipeline.Upload{Name: msg.Filename, Data: data}, emit)
		if err != nil {
			return ServerMessage{Error: err.Error()}
		}
		return ServerMessage{Status: StatusFileProcessed, Results: res.Scores}

	default:
		return ServerMessage{Error: fmt.Sprintf("unknown action %q", msg.Action)}
	}
}
