package otp

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
)

// Fixed algorithm parameters of every enrollment.
const (
	Digits    = 6
	Period    = 30
	Algorithm = "SHA1"

	// MinSecretSize is the smallest accepted shared secret in bytes (128 bits).
	MinSecretSize = 16
	// DefaultSecretSize is 160 bits, the RFC 4226 recommendation.
	DefaultSecretSize = 20

	qrSize = 256
)

// ErrSecretTooShort is returned when a secret smaller than MinSecretSize is requested.
var ErrSecretTooShort = errors.New("otp: secret shorter than 128 bits")

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Key is a provisioning payload for an authenticator app.
type Key struct {
	Issuer    string
	Account   string
	Secret    []byte
	SecretB32 string
	URI       string
	QRCodePNG []byte
	Digits    int
	Period    int
	Algorithm string
}

// OTP defines the contract for window-aware TOTP operations.
type OTP interface {
	Generate(account string) (*Key, error)
	KeyFromSecret(account string, secret []byte) (*Key, error)
	WindowAt(at time.Time) int64
	DeriveCode(secret []byte, window int64) (string, error)
	Check(secret []byte, code string, at time.Time) (window int64, ok bool)
}

// TOTP implements OTP with SHA1, 6 digits and a 30 second period.
type TOTP struct {
	issuer     string
	skew       uint
	secretSize int
	withQR     bool
}

// NewTOTP constructs a TOTP instance.
//
// A skew of 0 falls back to 1 window on each side. A secretSize below
// MinSecretSize falls back to DefaultSecretSize.
func NewTOTP(issuer string, skew uint, secretSize int) *TOTP {
	if skew == 0 {
		skew = 1
	}

	if secretSize < MinSecretSize {
		secretSize = DefaultSecretSize
	}

	return &TOTP{issuer: issuer, skew: skew, secretSize: secretSize, withQR: true}
}

// WithoutQR disables QR rendering; the payload then only carries the URI.
func (o *TOTP) WithoutQR() *TOTP {
	o.withQR = false
	return o
}

// Skew returns the number of windows accepted on each side of the current one.
func (o *TOTP) Skew() uint {
	return o.skew
}

// Generate creates a fresh random secret and its provisioning payload.
func (o *TOTP) Generate(account string) (*Key, error) {
	secret := make([]byte, o.secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	return o.KeyFromSecret(account, secret)
}

// KeyFromSecret rebuilds the provisioning payload of an existing secret.
func (o *TOTP) KeyFromSecret(account string, secret []byte) (*Key, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrSecretTooShort
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      o.issuer,
		AccountName: account,
		Period:      Period,
		Secret:      secret,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	out := &Key{
		Issuer:    o.issuer,
		Account:   account,
		Secret:    secret,
		SecretB32: key.Secret(),
		URI:       key.URL(),
		Digits:    Digits,
		Period:    Period,
		Algorithm: Algorithm,
	}

	if o.withQR {
		if out.QRCodePNG, err = qrPNG(key); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// QRCodeFromURI renders the PNG QR code of a provisioning URI.
func QRCodeFromURI(uri string) ([]byte, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, err
	}
	return qrPNG(key)
}

func qrPNG(key *otp.Key) ([]byte, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WindowAt returns floor(unix(at) / period).
func (o *TOTP) WindowAt(at time.Time) int64 {
	return at.Unix() / Period
}

// DeriveCode returns the code of secret for the given window. It is pure and
// deterministic.
func (o *TOTP) DeriveCode(secret []byte, window int64) (string, error) {
	if window < 0 {
		return "", otp.ErrValidateInputInvalidLength
	}

	return hotp.GenerateCodeCustom(b32.EncodeToString(secret), uint64(window), hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// Check evaluates the windows w-skew through w+skew around at and returns the
// window the code matched. Every candidate window is compared so that timing
// does not reveal which one matched.
func (o *TOTP) Check(secret []byte, code string, at time.Time) (int64, bool) {
	if len(code) != Digits || len(secret) == 0 {
		return 0, false
	}

	current := o.WindowAt(at)
	skew := int64(o.skew)

	var matched int64
	found := 0
	for w := current - skew; w <= current+skew; w++ {
		if w < 0 {
			continue
		}

		candidate, err := o.DeriveCode(secret, w)
		if err != nil {
			return 0, false
		}

		eq := subtle.ConstantTimeCompare([]byte(candidate), []byte(code))
		if eq == 1 && found == 0 {
			matched = w
			found = 1
		}
	}

	return matched, found == 1
}
