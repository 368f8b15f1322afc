package core

import "time"

// TicketState is the lifecycle state of a StreamTicket (spec §4.D state
// machine): New -> Subscribed -> Relaying -> {Completed | Timeout |
// Cancelled} -> Retired.
type TicketState string

const (
	TicketNew        TicketState = "new"
	TicketSubscribed TicketState = "subscribed"
	TicketRelaying   TicketState = "relaying"
	TicketCompleted  TicketState = "completed"
	TicketTimeout    TicketState = "timeout"
	TicketCancelled  TicketState = "cancelled"
	TicketRetired    TicketState = "retired"
)

// StreamTicket is the in-process handle for one in-flight chat dispatch.
// Ownership is exclusive to the Dispatcher until retirement; fields other
// than State/Cancelled are set once at creation and never mutated.
type StreamTicket struct {
	TicketID       string
	ReplySubject   string
	AckSubject     string
	Owner          string
	ConversationID string
	CreatedAt      time.Time
	Deadline       time.Time
	State          TicketState
	Cancelled      bool
}

// TicketKey identifies the (owner, conversation_id) pair that must be unique among
// non-retired tickets.
type TicketKey struct {
	Owner          string
	ConversationID string
}
