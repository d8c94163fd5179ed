package messaging

type consumeOptions struct {
	// group is the Kafka consumer group or the NATS queue group.
	group       string
	concurrency int
}

// ConsumeOption configures Consume.
type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	co := consumeOptions{concurrency: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	if co.concurrency <= 0 {
		co.concurrency = 1
	}
	return co
}

// WithGroup shares a topic between consumers: a Kafka consumer group or a NATS
// queue group.
func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

// WithConcurrency sets how many handler goroutines process messages.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}
