// Package kafka carries sync messages over Kafka. Records are keyed by lane
// key so every message of one entity lands on one partition. Requeued
// messages go to a retry topic and are parked there until due.
package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"regionsync/internal/sync/models"
)

// Publisher is the producer surface the transport needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

const (
	headerAttempt   = "attempt"
	headerNotBefore = "not-before"
)

// Transport sends and requeues messages.
type Transport struct {
	pub        Publisher
	topic      string
	retryTopic string
}

// RetryTopic names the retry topic paired with topic.
func RetryTopic(topic string) string {
	return topic + ".retry"
}

func NewTransport(pub Publisher, topic string) *Transport {
	return &Transport{pub: pub, topic: topic, retryTopic: RetryTopic(topic)}
}

func (t *Transport) Topics() []string {
	return []string{t.topic, t.retryTopic}
}

// Send publishes a fresh message.
func (t *Transport) Send(ctx context.Context, msg models.Message) error {
	return t.publish(ctx, t.topic, msg)
}

// Requeue publishes msg to the retry topic. The delay is already encoded in
// msg.NotBefore.
func (t *Transport) Requeue(ctx context.Context, msg models.Message, _ time.Duration) error {
	return t.publish(ctx, t.retryTopic, msg)
}

func (t *Transport) publish(ctx context.Context, topic string, msg models.Message) error {
	value, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode sync message: %w", err)
	}
	headers := map[string]string{headerAttempt: strconv.Itoa(msg.Attempt())}
	if !msg.NotBefore.IsZero() {
		headers[headerNotBefore] = msg.NotBefore.UTC().Format(time.RFC3339Nano)
	}
	return t.pub.Publish(ctx, topic, []byte(msg.LaneKey()), value, headers)
}
