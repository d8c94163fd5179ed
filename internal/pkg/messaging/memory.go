package messaging

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// Memory is an in-process broker. Each published message is delivered once
// per group (or to every ungrouped consumer) of the topic. Publish blocks while
// a consumer's buffer is full.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySub
	closed bool
	done   chan struct{}
}

type memorySub struct {
	group string
	ch    chan Delivery
}

// NewMemory returns an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]*memorySub), done: make(chan struct{})}
}

// Close stops all consumers.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Publish delivers msg to the current consumers of topic.
func (m *Memory) Publish(ctx context.Context, topic string, msg Message) error {
	if topic == "" {
		return ErrTopicRequired
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}

	targets := make([]*memorySub, 0, len(m.subs[topic]))
	seen := make(map[string]struct{})
	for _, s := range m.subs[topic] {
		if s.group != "" {
			if _, ok := seen[s.group]; ok {
				continue
			}
			seen[s.group] = struct{}{}
		}
		targets = append(targets, s)
	}
	m.mu.RUnlock()

	d := Delivery{Topic: topic, Key: msg.Key, Body: msg.Body, Headers: maps.Clone(msg.Headers), ReceivedAt: time.Now()}
	for _, s := range targets {
		select {
		case s.ch <- d:
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return ErrClosed
		}
	}

	return nil
}

// Consume registers a consumer and handles messages until ctx ends or the
// broker closes.
func (m *Memory) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)
	sub := &memorySub{group: co.group, ch: make(chan Delivery, 16)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.subs[topic] = append(m.subs[topic], sub)
	m.mu.Unlock()

	defer m.remove(topic, sub)

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case d := <-sub.ch:
					if err := handle(ctx, DriverMemory, handler, d); err != nil {
						slog.WarnContext(ctx, "memory handler failed", "topic", topic, "error", err)
					}
				case <-ctx.Done():
					return
				case <-m.done:
					return
				}
			}
		})
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrClosed
}

// Subscribers returns the number of consumers registered for topic.
func (m *Memory) Subscribers(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[topic])
}

func (m *Memory) remove(topic string, sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[topic]
	for i, s := range subs {
		if s == sub {
			m.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
