// Package secretbox encrypts small secrets at rest with AES-256-GCM.
//
// Every ciphertext is bound to a Scope through the GCM additional data, so a
// secret sealed for one account cannot be opened as another account's. The
// ciphertext carries the version of the key that sealed it which allows keys to
// be rotated without re-encrypting stored values up front.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// Purpose identifies what a sealed value is used for.
type Purpose string

// PurposeTOTPSecret scopes encryption to TOTP shared secrets.
const PurposeTOTPSecret Purpose = "totp_secret"

// Scope binds a ciphertext to its owner.
type Scope struct {
	Account string
	Purpose Purpose
}

// Box seals and opens secrets.
type Box interface {
	Seal(plaintext []byte, scope Scope) ([]byte, error)
	Open(ciphertext []byte, scope Scope) ([]byte, error)
	KeyVersion() uint16
}

// Ciphertext layout: [0..1] key version, [2..13] nonce, [14..] sealed data and tag.
const (
	headerSize = 2
	nonceSize  = 12
	keySize    = 32
)

var (
	// ErrPlaintextEmpty indicates an empty plaintext input.
	ErrPlaintextEmpty = errors.New("secretbox: plaintext is empty")
	// ErrInvalidKeyLength indicates a key that is not 32 bytes.
	ErrInvalidKeyLength = errors.New("secretbox: invalid key length")
	// ErrUnknownKeyVersion indicates a ciphertext sealed by a key no longer held.
	ErrUnknownKeyVersion = errors.New("secretbox: unknown key version")
	// ErrCiphertextTooShort indicates a truncated ciphertext.
	ErrCiphertextTooShort = errors.New("secretbox: ciphertext too short")
	// ErrOpenFailed indicates a wrong key, wrong scope or tampered ciphertext.
	ErrOpenFailed = errors.New("secretbox: open failed")
)

// AESGCM implements Box with a versioned set of AES-256 keys.
type AESGCM struct {
	current uint16
	aeads   map[uint16]cipher.AEAD
}

// NewAESGCM builds a box that seals with keys[current] and opens with any
// version present in keys.
func NewAESGCM(current uint16, keys map[uint16][]byte) (*AESGCM, error) {
	if _, ok := keys[current]; !ok {
		return nil, fmt.Errorf("secretbox: current key version %d: %w", current, ErrUnknownKeyVersion)
	}

	aeads := make(map[uint16]cipher.AEAD, len(keys))
	for version, key := range keys {
		if len(key) != keySize {
			return nil, fmt.Errorf("secretbox: key version %d has %d bytes: %w", version, len(key), ErrInvalidKeyLength)
		}

		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}

		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		aeads[version] = aead
	}

	return &AESGCM{current: current, aeads: aeads}, nil
}

// NewStaticAESGCM builds a box holding a single key as version 1.
func NewStaticAESGCM(key []byte) (*AESGCM, error) {
	return NewAESGCM(1, map[uint16][]byte{1: key})
}

// KeyVersion returns the version new ciphertexts are sealed with.
func (b *AESGCM) KeyVersion() uint16 {
	return b.current
}

// Seal encrypts plaintext for scope.
func (b *AESGCM) Seal(plaintext []byte, scope Scope) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrPlaintextEmpty
	}

	out := make([]byte, headerSize+nonceSize, headerSize+nonceSize+len(plaintext)+16)
	binary.BigEndian.PutUint16(out[:headerSize], b.current)

	nonce := out[headerSize : headerSize+nonceSize]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("secretbox: nonce generation failed: %w", err)
	}

	return b.aeads[b.current].Seal(out, nonce, plaintext, additionalData(scope)), nil
}

// Open decrypts ciphertext sealed for scope.
func (b *AESGCM) Open(ciphertext []byte, scope Scope) ([]byte, error) {
	if len(ciphertext) <= headerSize+nonceSize {
		return nil, ErrCiphertextTooShort
	}

	version := binary.BigEndian.Uint16(ciphertext[:headerSize])
	aead, ok := b.aeads[version]
	if !ok {
		return nil, fmt.Errorf("secretbox: key version %d: %w", version, ErrUnknownKeyVersion)
	}

	nonce := ciphertext[headerSize : headerSize+nonceSize]
	plain, err := aead.Open(nil, nonce, ciphertext[headerSize+nonceSize:], additionalData(scope))
	if err != nil {
		return nil, ErrOpenFailed
	}

	return plain, nil
}

// additionalData hashes a labelled canonical form of scope so the AAD has a
// fixed length and no separator ambiguity.
func additionalData(s Scope) []byte {
	sum := sha256.Sum256(fmt.Appendf(nil, "account=%s\npurpose=%s\n", s.Account, s.Purpose))
	return sum[:]
}
