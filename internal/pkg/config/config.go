package config

import (
	"io"
	"time"
)

// Config is the read-only view over runtime configuration.
//
// Missing keys and values that cannot be converted return the zero value of
// the requested type; implementations are expected to carry defaults for
// every key the service reads.
type Config interface {
	io.Closer

	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetFloat64(key string) float64
	GetBool(key string) bool
	GetString(key string) string

	// GetBinary decodes a base64 encoded value.
	GetBinary(key string) []byte

	// GetArray splits a value stored as <element1>,<element2>,... and drops
	// empty elements.
	GetArray(key string) []string

	// GetSecond reads an integer value as a number of seconds.
	GetSecond(key string) time.Duration

	// GetMinute reads an integer value as a number of minutes.
	GetMinute(key string) time.Duration
}
