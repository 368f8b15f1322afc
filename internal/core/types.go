package core

import (
	"time"

	"streamgate-go/internal/model"
)

// Identity is the verified subject of a bearer token. It is immutable and
// scoped to one HTTP request or one WebSocket connection.
type Identity struct {
	Subject  string
	IssuedAt time.Time
}

// ChatRequest is what a client submits, either over the WebSocket edge or
// the HTTP enqueue endpoint.
type ChatRequest struct {
	ConversationID string
	Text           string
	ModelID        string
	Owner          string
	SubmittedAt    time.Time
}

// Chunk is a single streamed fragment of a worker's response.
type Chunk struct {
	TicketID       string
	SequenceNumber int
	Payload        []byte
	Terminal       bool
	Err            string // non-empty on a terminal error chunk
}

// HotBufferEntry is a recent message cached for downstream memory
// processing.
type HotBufferEntry struct {
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"`
	Text           string          `json:"text"`
	Timestamp      model.LocalTime `json:"timestamp"`
}

// RawMemoryRecord is the request/response pair published to the durable
// raw-memory stream on normal ticket completion.
type RawMemoryRecord struct {
	ConversationID string          `json:"conversation_id"`
	Owner          string          `json:"owner"`
	RequestText    string          `json:"request_text"`
	ResponseText   string          `json:"response_text"`
	ModelID        string          `json:"model_id"`
	RequestedAt    model.LocalTime `json:"requested_at"`
	CompletedAt    model.LocalTime `json:"completed_at"`
}

// RequestEnvelope is the wire shape published to the request subject. It is
// parsed once at the edge of the bus and never re-inspected downstream — see
// the "dynamic typing around message envelopes" design note.
type RequestEnvelope struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	ModelID        string `json:"model_id,omitempty"`
	Owner          string `json:"owner"`
	TicketID       string `json:"ticket_id"`
	Persona        string `json:"persona,omitempty"`
}

// WorkerChunk is the wire shape a dialogue worker publishes on a ticket's
// reply subject — the same shape the WebSocket edge forwards to the client.
type WorkerChunk struct {
	Choices []WorkerChoice `json:"choices,omitempty"`
	Done    bool           `json:"done,omitempty"`
	ID      string         `json:"id,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type WorkerChoice struct {
	Delta        WorkerDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type WorkerDelta struct {
	Content string `json:"content"`
}

// InboundFrame is a client -> gateway WebSocket JSON frame.
type InboundFrame struct {
	RoomID string `json:"room_id"`
	Msg    string `json:"msg"`
	Model  string `json:"model,omitempty"`
}

// ErrorFrame is a gateway -> client WebSocket JSON error frame.
type ErrorFrame struct {
	Error string `json:"error"`
}
