// Package kafka publishes domain events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tabemono-pos/api/internal/events"
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues events in memory and writes them from a single goroutine,
// so Notify never waits on the broker.
type Producer struct {
	w     messageWriter
	inbox chan kafka.Message
}

// NewProducer creates a producer for topic. buf bounds the in-memory queue;
// events arriving while it is full are dropped and logged.
func NewProducer(brokers []string, topic string, buf int) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, buf)
}

func newProducer(w messageWriter, buf int) *Producer {
	return &Producer{w: w, inbox: make(chan kafka.Message, buf)}
}

// Notify implements events.Notifier. Events are keyed by store so one store's
// events stay ordered within a partition.
func (p *Producer) Notify(ctx context.Context, e events.Event) {
	value, err := json.Marshal(e)
	if err != nil {
		log.Printf("ERROR: kafka: encode %s event: %v", e.Type, err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.StoreID.String()),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
			{Key: "event-id", Value: []byte(e.ID.String())},
		},
	}

	select {
	case p.inbox <- msg:
	default:
		log.Printf("WARN: kafka: queue full, dropping %s event %s", e.Type, e.ID)
	}
}

// Run writes queued events until ctx is canceled, then flushes what is left
// and closes the writer.
func (p *Producer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return p.w.Close()
		case m := <-p.inbox:
			p.write(context.Background(), m)
		}
	}
}

func (p *Producer) drain() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case m := <-p.inbox:
			p.write(flushCtx, m)
		default:
			return
		}
	}
}

func (p *Producer) write(ctx context.Context, m kafka.Message) {
	if err := p.w.WriteMessages(ctx, m); err != nil {
		log.Printf("ERROR: kafka: write message key=%s: %v", m.Key, err)
	}
}
