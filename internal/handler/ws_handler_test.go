package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"streamgate-go/internal/auth"
	"streamgate-go/internal/core"
	"streamgate-go/internal/dispatcher"
	"streamgate-go/pkg/token"
)

type neverRevoked struct{}

func (neverRevoked) IsRevoked(ctx context.Context, jwtID string) (bool, error) { return false, nil }

func newTestServer(t *testing.T) (*httptest.Server, *fakeBus, *dispatcher.Dispatcher, *token.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := token.NewManager("test-secret", "HS256")
	verifier := auth.New(manager, neverRevoked{})
	fb := newFakeBus()
	d := dispatcher.New(fb, newFakeCache(), dispatcher.Config{
		IdleChunkTimeout: 2 * time.Second,
		TotalTicketTTL:   5 * time.Second,
		DrainTimeout:     200 * time.Millisecond,
	})

	r := gin.New()
	r.GET("/ws/chat", NewWSHandler(verifier, d, 30*time.Second).Handle)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, fb, d, manager
}

func TestWSHandlerRejectsMissingToken(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Equal(t, 101, resp.StatusCode)
	defer conn.Close()

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ef core.ErrorFrame
	require.NoError(t, json.Unmarshal(raw, &ef))
	require.NotEmpty(t, ef.Error)

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	require.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

func TestWSHandlerDropsNonJSONFrameSilently(t *testing.T) {
	srv, _, _, manager := newTestServer(t)

	tok, err := manager.Issue("alice", time.Hour)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json at all")))

	// A well-formed but semantically invalid frame right behind it should
	// still get a reply, proving the connection is alive and the earlier
	// non-JSON frame was silently dropped rather than replied to or killing
	// the read loop.
	require.NoError(t, conn.WriteJSON(core.InboundFrame{RoomID: "conv-bad-json"}))

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ef core.ErrorFrame
	require.NoError(t, json.Unmarshal(raw, &ef))
	require.Equal(t, "empty message", ef.Error)
}

func TestWSHandlerRoundTrip(t *testing.T) {
	srv, fb, _, manager := newTestServer(t)

	tok, err := manager.Issue("alice", time.Hour)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	frame := core.InboundFrame{RoomID: "conv-ws", Msg: "hello"}
	require.NoError(t, conn.WriteJSON(frame))

	require.Eventually(t, func() bool { return fb.replySubject() != "" }, time.Second, 10*time.Millisecond)

	finishReason := "stop"
	fb.deliver(fb.replySubject(), core.WorkerChunk{
		Choices: []core.WorkerChoice{{Delta: core.WorkerDelta{Content: "hi"}, FinishReason: &finishReason}},
		Done:    true,
	})

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var wc core.WorkerChunk
	require.NoError(t, json.Unmarshal(raw, &wc))
	require.True(t, wc.Done)
	require.Equal(t, "hi", wc.Choices[0].Delta.Content)
}
