package bus

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// client is the composite Bus Client: durable, headered publishes go
// through Kafka; ephemeral per-ticket subscribe/publish goes through Redis
// Pub/Sub. Callers only see the Client interface and never need to know
// which subject maps to which transport.
type client struct {
	kafka *kafkaPublisher
	redis *redisEphemeral
}

// Config is the Bus Client's construction parameters, sourced from the
// gateway's BUS_URL-shaped configuration surface.
type Config struct {
	KafkaBrokers []string
	RedisClient  *redis.Client
}

func New(cfg Config) Client {
	return &client{
		kafka: newKafkaPublisher(cfg.KafkaBrokers),
		redis: newRedisEphemeral(cfg.RedisClient),
	}
}

func (c *client) Publish(ctx context.Context, subject string, payload []byte, headers map[string]string) error {
	return c.kafka.publish(ctx, subject, payload, headers)
}

func (c *client) PublishStream(ctx context.Context, subject string, payload []byte) error {
	return c.kafka.publish(ctx, subject, payload, nil)
}

func (c *client) Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	return c.redis.subscribe(ctx, subject, handler)
}

func (c *client) Unsubscribe(sub Subscription) error {
	return c.redis.unsubscribe(sub)
}

func (c *client) Close() error {
	return c.kafka.close()
}
