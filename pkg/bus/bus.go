// Package bus is a thin wrapper over the gateway's pub-sub substrate: a
// headered, durable publish path backed by Kafka and an ephemeral,
// per-request publish/subscribe path backed by Redis Pub/Sub. See
// streamgate-go's SPEC_FULL.md §4 for why the two transports are split this
// way rather than forcing everything through one of them.
package bus

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Publish/PublishStream when the underlying
// transport is known to be disconnected — the client fails fast rather than
// blocking on a dead connection (spec §4.A reconnection policy).
var ErrUnavailable = errors.New("bus: transport unavailable")

// Message is a single message observed on a subscription.
type Message struct {
	Subject string
	Payload []byte
	Headers map[string]string
}

// Handler processes one Message. Handler invocations for a given
// subscription are serialized — the bus never calls a Handler for the same
// subscription concurrently.
type Handler func(ctx context.Context, msg Message)

// Subscription is an opaque handle returned by Subscribe.
type Subscription interface {
	// Subject is the subject this subscription was created for.
	Subject() string
}

// Client is the Bus Client component (spec §4.A).
type Client interface {
	// Publish is a fire-and-forget publish with arbitrary string headers.
	// It fails only on irrecoverable transport loss (ErrUnavailable).
	Publish(ctx context.Context, subject string, payload []byte, headers map[string]string) error

	// Subscribe registers an async handler for every message arriving on
	// subject. Delivery is at-most-once; ordering from a single publisher
	// is preserved.
	Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error)

	// Unsubscribe ceases delivery. Any in-flight handler invocation is
	// allowed to complete before this returns.
	Unsubscribe(sub Subscription) error

	// PublishStream publishes to a durable, replayable subject (at-least-
	// once delivery to independent consumers).
	PublishStream(ctx context.Context, subject string, payload []byte) error

	// Close releases all underlying connections.
	Close() error
}
