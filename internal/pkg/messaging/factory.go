package messaging

import (
	"errors"
	"fmt"
	"strings"
)

// Driver names accepted by New.
const (
	DriverNATS   = "nats"
	DriverKafka  = "kafka"
	DriverMemory = "memory"
)

// ErrUnknownDriver indicates an unsupported messaging driver.
var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions groups config for supported messaging backends.
type FactoryOptions struct {
	NATS  NATSConfig
	Kafka KafkaConfig
}

// New constructs a Messaging implementation by driver name.
func New(driver string, opts FactoryOptions) (Messaging, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverKafka:
		return NewKafka(opts.Kafka)
	case DriverNATS:
		return NewNATS(opts.NATS)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
