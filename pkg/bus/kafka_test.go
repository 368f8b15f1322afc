package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKafkaPublisherFailsFastWhenUnavailable(t *testing.T) {
	p := &kafkaPublisher{
		brokers:     []string{"127.0.0.1:9999"},
		reconnector: newReconnector("kafka", func(ctx context.Context) error { return errors.New("down") }),
	}
	p.reconnector.markUnavailable()

	err := p.publish(context.Background(), "chat.request", []byte("payload"), nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestKafkaHeaderRoundTrip(t *testing.T) {
	headers := map[string]string{
		"Reply": "resp.ticket-123",
		"Ack":   "inbox.ticket-123",
	}

	hdrs := toKafkaHeaders(headers)
	assert.Len(t, hdrs, 2)

	got := fromKafkaHeaders(hdrs)
	assert.Equal(t, headers, got)
}

func TestKafkaHeaderRoundTripEmpty(t *testing.T) {
	hdrs := toKafkaHeaders(nil)
	assert.Empty(t, hdrs)
	assert.Empty(t, fromKafkaHeaders(hdrs))
}
