package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpreset/internal/pkg/clock"
	"github.com/shandysiswandi/otpreset/internal/pkg/config"
	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/pkg/hash"
	"github.com/shandysiswandi/otpreset/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/lock"
	"github.com/shandysiswandi/otpreset/internal/pkg/otp"
	"github.com/shandysiswandi/otpreset/internal/pkg/secretbox"
	"github.com/shandysiswandi/otpreset/internal/pkg/uid"
	"github.com/shandysiswandi/otpreset/internal/pkg/validator"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

type secretStore interface {
	GetEnrollment(ctx context.Context, account string) (*entity.Enrollment, error)
	GetEnrollmentByContact(ctx context.Context, contact string) (*entity.Enrollment, error)
	ListEnrollments(ctx context.Context) ([]entity.Enrollment, error)
	UpsertEnrollment(ctx context.Context, in entity.Enrollment) error
}

type ledger interface {
	RecordAttempt(ctx context.Context, at entity.Attempt) error
	IsRateLimited(ctx context.Context, scope entity.Scope, account string, now time.Time) (bool, error)
	TryConsume(ctx context.Context, account string, window int64, now time.Time) (bool, error)
}

type sessionStore interface {
	GetSession(ctx context.Context, account string) (*entity.Session, error)
	GetSessionAccountByRef(ctx context.Context, refHash string) (string, error)
	SaveSession(ctx context.Context, sess entity.Session, ttl time.Duration) error
	DeleteSessions(ctx context.Context, account string) error
}

type directory interface {
	Exists(ctx context.Context, account string) (bool, error)
}

type applier interface {
	Apply(ctx context.Context, account, newPassword string) error
}

type delivery interface {
	Deliver(ctx context.Context, account string, payload entity.ProvisioningPayload) error
}

const lockWait = 5 * time.Second

// PingFunc reports the health of a backing service.
type PingFunc func(ctx context.Context) error

type Usecase struct {
	secrets   secretStore
	ledger    ledger
	sessions  sessionStore
	directory directory
	applier   applier
	delivery  delivery
	locker    lock.Locker
	idemp     idempotency.Idempotency
	box       secretbox.Box
	totp      otp.OTP
	hmac      hash.Hash
	uid       uid.NumberID
	token     uid.StringID
	validator validator.Validator
	cfg       config.Config
	clock     clock.Clocker
	ins       instrument.Instrumentation
	pings     map[string]PingFunc

	maxPasswordBytes int

	outcomes metric.Int64Counter
}

type Dependency struct {
	Secrets     secretStore
	Ledger      ledger
	Sessions    sessionStore
	Directory   directory
	Applier     applier
	Delivery    delivery
	Locker      lock.Locker
	Idempotency idempotency.Idempotency
	SecretBox   secretbox.Box
	Totp        otp.OTP
	HMAC        hash.Hash
	UID         uid.NumberID
	Token       uid.StringID
	Validator   validator.Validator
	Config      config.Config
	Clock       clock.Clocker
	Instrument  instrument.Instrumentation
	// Pings are the backing services reported by Health, keyed by name.
	Pings map[string]PingFunc
	// MaxPasswordBytes caps new passwords in bytes. Zero means
	// DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

func New(dep Dependency) *Usecase {
	s := &Usecase{
		secrets:   dep.Secrets,
		ledger:    dep.Ledger,
		sessions:  dep.Sessions,
		directory: dep.Directory,
		applier:   dep.Applier,
		delivery:  dep.Delivery,
		locker:    dep.Locker,
		idemp:     dep.Idempotency,
		box:       dep.SecretBox,
		totp:      dep.Totp,
		hmac:      dep.HMAC,
		uid:       dep.UID,
		token:     dep.Token,
		validator: dep.Validator,
		cfg:       dep.Config,
		clock:     dep.Clock,
		ins:       dep.Instrument,
		pings:     dep.Pings,

		maxPasswordBytes: dep.MaxPasswordBytes,
	}
	if s.maxPasswordBytes <= 0 {
		s.maxPasswordBytes = DefaultMaxPasswordBytes
	}

	counter, err := s.ins.Meter("reset.usecase").Int64Counter(
		"reset.attempt.outcomes",
		metric.WithDescription("Ledger outcomes of verification, enrollment and resend attempts"),
	)
	if err != nil {
		slog.Warn("failed to create attempt outcome counter", "error", err)
		counter = metricnoop.Int64Counter{}
	}
	s.outcomes = counter

	return s
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("reset.usecase").Start(ctx, name)
}

func (s *Usecase) lockAccount(ctx context.Context, account string) (lock.Unlock, error) {
	lctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	unlock, err := s.locker.Lock(lctx, "reset:account:"+account)
	if err == nil {
		return unlock, nil
	}

	if errors.Is(err, lock.ErrNotAcquired) || errors.Is(err, context.DeadlineExceeded) {
		slog.WarnContext(ctx, "account is locked by another request", "account", account, "error", err)
		return nil, goerror.NewBusiness("Another request for this account is in progress", goerror.CodeConflict)
	}

	slog.ErrorContext(ctx, "failed to lock account", "account", account, "error", err)
	return nil, goerror.NewServer(err)
}

// record appends an attempt to the ledger. A rejection that cannot be
// recorded is surfaced as a server error so probing is never unthrottled.
func (s *Usecase) record(ctx context.Context, scope entity.Scope, account string, outcome entity.Outcome, at time.Time) error {
	s.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope.String()),
		attribute.String("outcome", outcome.String()),
	))

	err := s.ledger.RecordAttempt(ctx, entity.Attempt{Account: account, Scope: scope, Outcome: outcome, At: at})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record attempt", "account", account, "scope", scope, "outcome", outcome, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

// rateLimited checks the budget of scope and records a refused attempt.
func (s *Usecase) rateLimited(ctx context.Context, scope entity.Scope, account string, now time.Time) error {
	limited, err := s.ledger.IsRateLimited(ctx, scope, account, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check rate limit", "account", account, "scope", scope, "error", err)
		return goerror.NewServer(err)
	}

	if !limited {
		return nil
	}

	if err := s.record(ctx, scope, account, entity.OutcomeRateLimited, now); err != nil {
		return err
	}

	slog.WarnContext(ctx, "attempt rate limited", "account", account, "scope", scope)
	return entity.ErrRateLimited
}

func (s *Usecase) accountExists(ctx context.Context, account string) error {
	ok, err := s.directory.Exists(ctx, account)
	if err != nil {
		slog.ErrorContext(ctx, "failed to look up account in directory", "account", account, "error", err)
		return goerror.NewServer(err)
	}

	if !ok {
		return entity.ErrAccountNotFound
	}

	return nil
}

func (s *Usecase) boundaryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.GetSecond("modules.reset.boundary_timeout_seconds")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return context.WithTimeout(ctx, timeout)
}

func (s *Usecase) deliver(ctx context.Context, account string, payload entity.ProvisioningPayload) error {
	dctx, cancel := s.boundaryContext(ctx)
	defer cancel()

	if err := s.delivery.Deliver(dctx, account, payload); err != nil {
		slog.ErrorContext(ctx, "failed to deliver provisioning payload", "account", account, "error", err)
		return entity.ErrDeliveryFailure.Wrap(err)
	}

	return nil
}

func (s *Usecase) secretScope(account string) secretbox.Scope {
	return secretbox.Scope{Account: account, Purpose: secretbox.PurposeTOTPSecret}
}

func (s *Usecase) payload(key *otp.Key, contact string) entity.ProvisioningPayload {
	return entity.ProvisioningPayload{
		Account:   key.Account,
		Contact:   contact,
		Issuer:    key.Issuer,
		Secret:    key.SecretB32,
		URI:       key.URI,
		QRCodePNG: key.QRCodePNG,
		Digits:    key.Digits,
		Period:    key.Period,
		Algorithm: key.Algorithm,
	}
}

// sessionTTL is how long a store keeps sess. It outlives ExpiresAt so a late
// request is answered with the session's own state instead of a miss.
func (s *Usecase) sessionTTL(sess *entity.Session, now time.Time) time.Duration {
	ttl := sess.ExpiresAt.Sub(now)
	if sess.State != entity.SessionStateCompleted {
		ttl += s.retention()
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

func (s *Usecase) retention() time.Duration {
	if d := s.cfg.GetSecond("modules.reset.completed_retention_seconds"); d > 0 {
		return d
	}
	return time.Hour
}

func (s *Usecase) awaitTTL() time.Duration {
	if d := s.cfg.GetSecond("modules.reset.await_ttl_seconds"); d > 0 {
		return d
	}
	return 10 * time.Minute
}

func (s *Usecase) verifiedTTL() time.Duration {
	if d := s.cfg.GetSecond("modules.reset.verified_ttl_seconds"); d > 0 {
		return d
	}
	return 5 * time.Minute
}
