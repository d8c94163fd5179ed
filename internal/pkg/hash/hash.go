package hash

import (
	"fmt"
	"strings"
)

// Hash is implemented by every hasher in this package.
type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}

// Limiter is implemented by hashers that reject long input.
type Limiter interface {
	MaxInputBytes() int
}

// Options carries the configuration of the hasher built by New.
type Options struct {
	BcryptCost     int
	BcryptPepper   string
	Argon2idPepper string
	HMACSecret     string
}

// New returns the hasher named by kind ("bcrypt", "argon2id" or "hmac").
func New(kind string, opts Options) (Hash, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "bcrypt":
		return NewBcrypt(opts.BcryptCost, opts.BcryptPepper), nil
	case "argon2id", "":
		return NewArgon2id(opts.Argon2idPepper), nil
	case "hmac", "hmac_sha256":
		return NewHMACSHA256(opts.HMACSecret), nil
	default:
		return nil, fmt.Errorf("hash: unknown hasher %q", kind)
	}
}
