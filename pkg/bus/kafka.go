package bus

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// kafkaPublisher is the durable half of the Bus Client: it publishes the
// single well-known request subject (with headers) and the raw-memory
// stream, both of which want Kafka's durable, replayable log semantics.
// A single kafka.Writer handles all topics it is asked to write to —
// kafka-go dials per write, so one Writer can address multiple topics by
// setting kafka.Message.Topic per call.
type kafkaPublisher struct {
	writer      *kafka.Writer
	brokers     []string
	reconnector *reconnector
}

func newKafkaPublisher(brokers []string) *kafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	p := &kafkaPublisher{writer: w, brokers: brokers}
	p.reconnector = newReconnector("kafka", p.probe)
	go p.reconnector.run()
	return p
}

func (p *kafkaPublisher) probe(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Brokers()
	return err
}

// toKafkaHeaders converts the Bus Client's string-keyed headers (spec
// §4.A's Reply=/Ack= contract) into kafka.Header pairs.
func toKafkaHeaders(headers map[string]string) []kafka.Header {
	hdrs := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		hdrs = append(hdrs, kafka.Header{Key: k, Value: []byte(v)})
	}
	return hdrs
}

// fromKafkaHeaders is the inverse of toKafkaHeaders, used by tests to
// confirm the round trip and by nothing else in production — a dialogue
// worker reads kafka.Header directly, the gateway never consumes its own
// request topic.
func fromKafkaHeaders(hdrs []kafka.Header) map[string]string {
	m := make(map[string]string, len(hdrs))
	for _, h := range hdrs {
		m[h.Key] = string(h.Value)
	}
	return m
}

func (p *kafkaPublisher) publish(ctx context.Context, topic string, payload []byte, headers map[string]string) error {
	if !p.reconnector.isAvailable() {
		return ErrUnavailable
	}
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Value:   payload,
		Headers: toKafkaHeaders(headers),
	})
	if err != nil {
		p.reconnector.markUnavailable()
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (p *kafkaPublisher) close() error {
	p.reconnector.close()
	return p.writer.Close()
}
