package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"streamgate-go/internal/auth"
	"streamgate-go/internal/dispatcher"
	"streamgate-go/internal/middleware"
	"streamgate-go/pkg/token"
)

func newEnqueueServer(t *testing.T) (*httptest.Server, *token.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := token.NewManager("test-secret", "HS256")
	verifier := auth.New(manager, neverRevoked{})
	d := dispatcher.New(newFakeBus(), newFakeCache(), dispatcher.Config{
		IdleChunkTimeout: 2 * time.Second,
		TotalTicketTTL:   5 * time.Second,
		DrainTimeout:     200 * time.Millisecond,
	})

	r := gin.New()
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware(verifier))
	chat.POST("", NewEnqueueHandler(d).Handle)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, manager
}

func TestEnqueueHandlerRequiresAuth(t *testing.T) {
	srv, _ := newEnqueueServer(t)

	resp, err := http.Post(srv.URL+"/chat", "application/json", bytes.NewBufferString(`{"room_id":"c","msg":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEnqueueHandlerAccepted(t *testing.T) {
	srv, manager := newEnqueueServer(t)

	tok, err := manager.Issue("alice", time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat", bytes.NewBufferString(`{"room_id":"conv-http","msg":"hi"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "queued", body["status"])
	require.NotEmpty(t, body["id"])
}

func TestEnqueueHandlerReturnsGatewayTimeoutOnSlowAdmission(t *testing.T) {
	gin.SetMode(gin.TestMode)

	manager := token.NewManager("test-secret", "HS256")
	verifier := auth.New(manager, neverRevoked{})
	fb := newFakeBus()
	fb.blockPublish = true
	d := dispatcher.New(fb, newFakeCache(), dispatcher.Config{
		IdleChunkTimeout: 2 * time.Second,
		TotalTicketTTL:   5 * time.Second,
		DrainTimeout:     200 * time.Millisecond,
		AdmissionTimeout: 50 * time.Millisecond,
	})

	r := gin.New()
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware(verifier))
	chat.POST("", NewEnqueueHandler(d).Handle)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	tok, err := manager.Issue("alice", time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat", bytes.NewBufferString(`{"room_id":"conv-slow","msg":"hi"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestEnqueueHandlerRejectsMissingMessage(t *testing.T) {
	srv, manager := newEnqueueServer(t)

	tok, err := manager.Issue("alice", time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat", bytes.NewBufferString(`{"room_id":"conv-http"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
