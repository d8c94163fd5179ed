package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrTopicRequired is returned when the topic is empty.
	ErrTopicRequired = errors.New("messaging: topic is required")
	// ErrHandlerRequired is returned when Consume is called with a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("messaging: client closed")
)

// Messaging is a broker client that can publish and consume messages.
type Messaging interface {
	io.Closer
	Publisher
	Consumer
}

// Publisher publishes messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
}

// Consumer consumes a topic until ctx ends or the broker fails.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes a received message. A non-nil error leaves a Kafka
// message uncommitted; other drivers only log it.
type Handler func(ctx context.Context, d Delivery) error

// Message is an outgoing message.
type Message struct {
	Key     []byte
	Body    []byte
	Headers map[string]string
}

// Delivery is a received message.
type Delivery struct {
	Topic      string
	Key        []byte
	Body       []byte
	Headers    map[string]string
	ReceivedAt time.Time
}

// Header returns the value of a header, or "" when absent.
func (d Delivery) Header(key string) string {
	return d.Headers[key]
}
