// Package handler wires the gateway's two client-facing surfaces — the
// WebSocket Edge and the HTTP enqueue endpoint — to the Auth Verifier and
// the Streaming Dispatcher (spec §4.E, §8).
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"streamgate-go/internal/auth"
	"streamgate-go/internal/core"
	"streamgate-go/internal/dispatcher"
	"streamgate-go/pkg/log"
)

// WSHandler serves the WebSocket Edge: one client per connection, one
// Dispatch call per inbound frame, with writes to the connection serialized
// through a mutex since the keepalive ticker and any number of concurrent
// relay goroutines all write to the same socket.
type WSHandler struct {
	verifier   *auth.Verifier
	dispatcher *dispatcher.Dispatcher
	upgrader   websocket.Upgrader
	keepalive  time.Duration
}

func NewWSHandler(verifier *auth.Verifier, d *dispatcher.Dispatcher, keepalive time.Duration) *WSHandler {
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	return &WSHandler{
		verifier:   verifier,
		dispatcher: d,
		keepalive:  keepalive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers hitting this gateway come from whatever origin the
			// frontend is served on; the gateway authenticates by bearer
			// token, not by origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the connection, authenticates it, and runs the read loop
// until the client disconnects. The upgrade always happens first: a browser
// WebSocket client can't see an HTTP 401, only a close frame, so auth
// failure is reported by accepting the socket and then closing it with
// 1008 Policy Violation (spec §4.E.1).
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	identity, err := h.verifier.VerifyWS(c.Request.Context(), c.Query("token"))
	if err != nil {
		_ = conn.WriteJSON(core.ErrorFrame{Error: err.Error()})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthenticated"))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writeMu sync.Mutex
	write := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}
	writeRaw := func(payload []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, payload)
	}

	go h.keepaliveLoop(ctx, cancel, &writeMu, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if strings.TrimSpace(string(raw)) == "" {
			continue // client-side keepalive frame
		}

		var frame core.InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			// Non-JSON frame: ignored with a warning, no reply (spec §4.E
			// step 2) — a malformed wire format isn't something the client
			// can act on, and echoing arbitrary garbage back risks framing
			// issues of its own.
			log.Warnf("ws: dropping non-JSON frame from %s: %v", identity.Subject, err)
			continue
		}
		if frame.Msg == "" {
			// Valid JSON, semantically invalid: the spec calls for a single
			// error frame in reply.
			_ = write(core.ErrorFrame{Error: "empty message"})
			continue
		}
		if frame.Msg == "+ACK" {
			// Vestigial client acknowledgment frame; the gateway never
			// needs it (spec §13 open-question decision).
			continue
		}

		req := core.ChatRequest{
			ConversationID: frame.RoomID,
			Text:           frame.Msg,
			ModelID:        frame.Model,
			Owner:          identity.Subject,
		}
		sink := dispatcher.FuncSink{
			SendFunc: func(chunk core.Chunk) error {
				return writeRaw(chunk.Payload)
			},
		}
		if _, err := h.dispatcher.Dispatch(ctx, identity, req, sink); err != nil {
			_ = write(core.ErrorFrame{Error: err.Error()})
		}
	}
}

func (h *WSHandler) keepaliveLoop(ctx context.Context, cancel context.CancelFunc, writeMu *sync.Mutex, conn *websocket.Conn) {
	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte("{}"))
			writeMu.Unlock()
			if err != nil {
				cancel()
				return
			}
		}
	}
}
