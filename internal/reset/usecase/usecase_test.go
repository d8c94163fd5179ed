package usecase

import (
	"bytes"
	"context"
	"encoding/base32"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpreset/internal/pkg/config"
	"github.com/shandysiswandi/otpreset/internal/pkg/hash"
	"github.com/shandysiswandi/otpreset/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/lock"
	"github.com/shandysiswandi/otpreset/internal/pkg/otp"
	"github.com/shandysiswandi/otpreset/internal/pkg/secretbox"
	"github.com/shandysiswandi/otpreset/internal/pkg/uid"
	"github.com/shandysiswandi/otpreset/internal/pkg/validator"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
	"github.com/shandysiswandi/otpreset/internal/reset/outbound/memory"
	"github.com/stretchr/testify/require"
)

const testConfig = `
modules:
  reset:
    await_ttl_seconds: 600
    verified_ttl_seconds: 300
    completed_retention_seconds: 3600
    boundary_timeout_seconds: 1
    expose_provisioning: true
`

// base sits 10 seconds into a 30 second window.
var base = time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeApplier struct {
	mu    sync.Mutex
	calls []string
	err   error
	block bool
}

func (f *fakeApplier) Apply(ctx context.Context, account, newPassword string) error {
	f.mu.Lock()
	block, err := f.block, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, account+":"+newPassword)
	return nil
}

func (f *fakeApplier) set(err error, block bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err, f.block = err, block
}

func (f *fakeApplier) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeDelivery struct {
	mu       sync.Mutex
	payloads map[string][]entity.ProvisioningPayload
	err      error
}

func (f *fakeDelivery) Deliver(_ context.Context, account string, p entity.ProvisioningPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.payloads == nil {
		f.payloads = make(map[string][]entity.ProvisioningPayload)
	}
	f.payloads[account] = append(f.payloads[account], p)
	return f.err
}

func (f *fakeDelivery) last(t *testing.T, account string) entity.ProvisioningPayload {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	list := f.payloads[account]
	require.NotEmpty(t, list, "no payload delivered to %s", account)
	return list[len(list)-1]
}

func (f *fakeDelivery) count(account string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads[account])
}

type harness struct {
	uc       *Usecase
	clock    *fakeClock
	totp     *otp.TOTP
	ledger   *memory.Ledger
	sessions *memory.SessionStore
	secrets  *memory.SecretStore
	applier  *fakeApplier
	delivery *fakeDelivery
	pings    map[string]PingFunc
}

func newHarness(t *testing.T, opts ...func(*Dependency)) *harness {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig), nil)
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	box, err := secretbox.NewStaticAESGCM(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	sf, err := uid.NewSnowflake(1)
	require.NoError(t, err)

	h := &harness{
		clock:    &fakeClock{now: base},
		totp:     otp.NewTOTP("otpreset", 1, otp.DefaultSecretSize).WithoutQR(),
		ledger:   memory.NewLedger(entity.LedgerPolicy{Limit: 5, Window: time.Hour, ConsumeTTL: 2 * time.Minute}),
		secrets:  memory.NewSecretStore(),
		applier:  &fakeApplier{},
		delivery: &fakeDelivery{},
		pings:    map[string]PingFunc{},
	}
	h.sessions = memory.NewSessionStore(h.clock.Now)

	dep := Dependency{
		Secrets:     h.secrets,
		Ledger:      h.ledger,
		Sessions:    h.sessions,
		Directory:   memory.NewStaticDirectory("alice", "bob", "dave"),
		Applier:     h.applier,
		Delivery:    h.delivery,
		Locker:      lock.NewMemory(),
		Idempotency: idempotency.NewMemory(h.clock.Now),
		SecretBox:   box,
		Totp:        h.totp,
		HMAC:        hash.NewHMACSHA256("test-secret"),
		UID:         sf,
		Token:       uid.NewToken(),
		Validator:   v,
		Config:      cfg,
		Clock:       h.clock,
		Instrument:  instrument.NewNoop(),
		Pings:       h.pings,
	}
	for _, opt := range opts {
		opt(&dep)
	}
	h.uc = New(dep)

	return h
}

func (h *harness) enroll(t *testing.T, account string) []byte {
	t.Helper()

	_, err := h.uc.Enroll(context.Background(), EnrollInput{Username: account, Email: account + "@example.com"})
	require.NoError(t, err)
	return h.secretOf(t, account)
}

func (h *harness) secretOf(t *testing.T, account string) []byte {
	t.Helper()

	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(h.delivery.last(t, account).Secret)
	require.NoError(t, err)
	return secret
}

func (h *harness) codeAt(t *testing.T, secret []byte, at time.Time) string {
	t.Helper()

	code, err := h.totp.DeriveCode(secret, h.totp.WindowAt(at))
	require.NoError(t, err)
	return code
}

// wrongCode returns a code accepted by none of the tolerated windows at at.
func (h *harness) wrongCode(t *testing.T, secret []byte, at time.Time) string {
	t.Helper()

	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if _, ok := h.totp.Check(secret, c, at); !ok {
			return c
		}
	}
	t.Fatal("no wrong code found")
	return ""
}

func (h *harness) verify(t *testing.T, account string, secret []byte) string {
	t.Helper()

	out, err := h.uc.VerifyOTP(context.Background(), VerifyOTPInput{Username: account, Code: h.codeAt(t, secret, h.clock.Now())})
	require.NoError(t, err)
	return out.SessionRef
}

var errBoom = errors.New("boom")
