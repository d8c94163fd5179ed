package uid

import (
	"crypto/rand"
	"encoding/base64"
)

// Token generates unguessable URL-safe strings of 256 random bits.
type Token struct {
	size int
}

// NewToken returns a token generator.
func NewToken() *Token {
	return &Token{size: 32}
}

// Generate returns a new token. crypto/rand.Read never fails on supported
// platforms; a failure panics rather than issuing a weak token.
func (t *Token) Generate() string {
	b := make([]byte, t.size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}

	return base64.RawURLEncoding.EncodeToString(b)
}
