package dispatcher

import "streamgate-go/internal/core"

// Sink is the capability the caller passes into Dispatch to receive each
// Chunk (spec §4.D public contract). The WebSocket Edge implements this by
// writing a JSON frame per chunk; the HTTP enqueue path implements it as a
// no-op (fire-and-forget — chunks are still cached and mirrored, just not
// streamed back synchronously).
type Sink interface {
	// Send delivers one chunk to the caller. An error means the
	// underlying transport is gone; the Dispatcher treats it the same as
	// a signal on Closed.
	Send(core.Chunk) error

	// Closed reports whether the sink has been closed (e.g. the client's
	// WebSocket disconnected). Once true, the Dispatcher stops forwarding
	// but keeps draining the subscription per the cancellation semantics.
	Closed() bool
}

// NopSink discards every chunk. Used by the HTTP enqueue endpoint, whose
// relay is fire-and-forget.
type NopSink struct{}

func (NopSink) Send(core.Chunk) error { return nil }
func (NopSink) Closed() bool          { return false }

// FuncSink adapts a plain send function (and an optional closed check) to
// Sink, used by the WebSocket edge where the send function writes a JSON
// frame to the connection.
type FuncSink struct {
	SendFunc   func(core.Chunk) error
	ClosedFunc func() bool
}

func (f FuncSink) Send(c core.Chunk) error {
	return f.SendFunc(c)
}

func (f FuncSink) Closed() bool {
	if f.ClosedFunc == nil {
		return false
	}
	return f.ClosedFunc()
}
