// Package uid generates identifiers: snowflake numbers for records, UUIDs for
// correlation and random opaque tokens for bearer references.
package uid

// NumberID generates numeric identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}
