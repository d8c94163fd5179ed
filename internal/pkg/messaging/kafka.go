package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
	ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")
	// ErrKafkaGroupRequired is returned when Consume is called without WithGroup.
	ErrKafkaGroupRequired = errors.New("messaging: kafka consumer group is required")
)

// KafkaConfig configures the Kafka implementation.
type KafkaConfig struct {
	Brokers []string
	// Dialer is optional; kafka-go defaults apply when nil.
	Dialer *kafka.Dialer
}

// Kafka is a messaging implementation backed by kafka-go. Offsets are
// committed only after the handler returns nil.
type Kafka struct {
	brokers []string
	dialer  *kafka.Dialer

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

// NewKafka constructs a Kafka messaging client. Connections are opened lazily.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	return &Kafka{
		brokers: append([]string(nil), cfg.Brokers...),
		dialer:  cfg.Dialer,
		writers: make(map[string]*kafka.Writer),
	}, nil
}

// Close flushes and closes every writer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true

	var err error
	for topic, w := range k.writers {
		err = errors.Join(err, w.Close())
		delete(k.writers, topic)
	}
	return err
}

// Publish writes msg to topic and waits for the broker acknowledgement.
func (k *Kafka) Publish(ctx context.Context, topic string, msg Message) error {
	if topic == "" {
		return ErrTopicRequired
	}

	w, err := k.writer(topic)
	if err != nil {
		return err
	}

	kmsg := kafka.Message{Key: msg.Key, Value: msg.Body, Time: time.Now()}
	for key, v := range msg.Headers {
		kmsg.Headers = append(kmsg.Headers, kafka.Header{Key: key, Value: []byte(v)})
	}

	if err := w.WriteMessages(ctx, kmsg); err != nil {
		return fmt.Errorf("messaging: kafka publish: %w", err)
	}
	return nil
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, ErrClosed
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	//nolint:staticcheck // WriterConfig keeps Dialer support
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  k.brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Dialer:   k.dialer,
	})
	k.writers[topic] = w
	return w, nil
}

// Consume reads topic as part of a consumer group until ctx ends or the
// reader fails. A handler error stops consumption so that the message is
// redelivered to the group.
func (k *Kafka) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)
	if co.group == "" {
		return ErrKafkaGroupRequired
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  co.group,
		Topic:    topic,
		MaxBytes: 10e6,
		Dialer:   k.dialer,
	})

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	msgCh := make(chan kafka.Message)
	go func() {
		defer close(msgCh)
		for {
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				cancel(err)
				return
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for m := range msgCh {
				headers := make(map[string]string, len(m.Headers))
				for _, h := range m.Headers {
					headers[h.Key] = string(h.Value)
				}

				d := Delivery{Topic: m.Topic, Key: m.Key, Body: m.Value, Headers: headers, ReceivedAt: time.Now()}
				if err := handle(ctx, DriverKafka, handler, d); err != nil {
					slog.WarnContext(ctx, "kafka handler failed", "topic", topic, "offset", m.Offset, "error", err)
					cancel(err)
					return
				}

				if err := reader.CommitMessages(ctx, m); err != nil {
					cancel(err)
					return
				}
			}
		})
	}
	wg.Wait()

	err := context.Cause(ctx)
	if cerr := reader.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("messaging: kafka consume: %w", err)
}
