package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"streamgate-go/internal/core"
	"streamgate-go/internal/dispatcher"
	"streamgate-go/internal/middleware"
)

// EnqueueHandler serves the HTTP enqueue endpoint: a bearer-authenticated
// fire-and-forget alternative to the WebSocket edge (spec §4.E, §8). The
// caller gets a ticket id back immediately; the response is streamed only
// into the hot buffer and the raw-memory record, not back over HTTP.
type EnqueueHandler struct {
	dispatcher *dispatcher.Dispatcher
}

func NewEnqueueHandler(d *dispatcher.Dispatcher) *EnqueueHandler {
	return &EnqueueHandler{dispatcher: d}
}

type enqueueResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (h *EnqueueHandler) Handle(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)

	var frame core.InboundFrame
	if err := c.ShouldBindJSON(&frame); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	if frame.Msg == "" || frame.RoomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id and msg are required"})
		return
	}

	req := core.ChatRequest{
		ConversationID: frame.RoomID,
		Text:           frame.Msg,
		ModelID:        frame.Model,
		Owner:          identity.Subject,
	}

	// The relay must outlive this HTTP request; context.Background keeps it
	// running after the response is written.
	ticketID, err := h.dispatcher.Dispatch(context.Background(), identity, req, dispatcher.NopSink{})
	if err != nil {
		c.JSON(middleware.StatusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, enqueueResponse{Status: "queued", ID: ticketID})
}
