package bus

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// redisSubscription adapts a go-redis *redis.PubSub into the bus's
// Subscription + serialized-delivery contract: a single goroutine drains
// the PubSub's channel and invokes the handler, so handler invocations for
// this subscription can never overlap.
type redisSubscription struct {
	subject string
	pubsub  *redis.PubSub
	done    chan struct{}
}

func (s *redisSubscription) Subject() string { return s.subject }

func newRedisEphemeral(rdb *redis.Client) *redisEphemeral {
	return &redisEphemeral{rdb: rdb}
}

// redisEphemeral is the ephemeral half of the Bus Client: per-ticket reply
// and ack subjects, using native Redis PUBLISH/SUBSCRIBE channels. No
// provisioning step is needed to create or destroy a "subject" — the
// channel exists exactly as long as something is subscribed to it, which is
// the ephemeral-subscription semantic the spec calls for.
type redisEphemeral struct {
	rdb *redis.Client
}

func (e *redisEphemeral) subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	ps := e.rdb.Subscribe(ctx, subject)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	sub := &redisSubscription{subject: subject, pubsub: ps, done: make(chan struct{})}
	ch := ps.Channel()
	go func() {
		defer close(sub.done)
		for msg := range ch {
			// Native Redis PUBLISH/SUBSCRIBE carries no header mechanism,
			// so Message.Headers is always nil on this transport — a
			// dialogue worker can only signal an error through the JSON
			// payload's error field, never through a header (spec §4.D's
			// header-based error signal only applies to the durable,
			// Kafka-backed side; see DESIGN.md).
			handler(ctx, Message{Subject: subject, Payload: []byte(msg.Payload)})
		}
	}()
	return sub, nil
}

func (e *redisEphemeral) unsubscribe(sub Subscription) error {
	rs, ok := sub.(*redisSubscription)
	if !ok {
		return nil
	}
	err := rs.pubsub.Close()
	<-rs.done // wait for the drain goroutine to observe channel closure
	return err
}

func (e *redisEphemeral) publish(ctx context.Context, subject string, payload []byte) error {
	return e.rdb.Publish(ctx, subject, payload).Err()
}
