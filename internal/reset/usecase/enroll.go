package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

type EnrollInput struct {
	Username       string `validate:"required,username"`
	Email          string `validate:"required,email,max=254"`
	IdempotencyKey string `validate:"omitempty,max=128"`
}

type EnrollOutput struct {
	Account   string
	Issuer    string
	Digits    int
	Period    int
	Algorithm string

	// Provisioning material, set only when the service is configured to
	// expose it to the caller.
	URI       string
	Secret    string
	QRCodePNG []byte
}

// Enroll binds a fresh shared secret to the account and hands the
// provisioning payload to the delivery boundary. A previous secret and every
// in-flight reset session of the account are invalidated.
func (s *Usecase) Enroll(ctx context.Context, in EnrollInput) (*EnrollOutput, error) {
	ctx, span := s.startSpan(ctx, "Enroll")
	defer span.End()

	in.Username = strings.TrimSpace(strings.ToLower(in.Username))
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if in.IdempotencyKey == "" || s.idemp == nil {
		return s.enroll(ctx, in)
	}

	var out *EnrollOutput
	err := s.idemp.Exec(ctx, "reset:enroll:"+in.Username+":"+in.IdempotencyKey, func(ctx context.Context) error {
		var err error
		out, err = s.enroll(ctx, in)
		return err
	})

	switch {
	case errors.Is(err, idempotency.ErrAlreadyInProgress):
		return nil, goerror.NewBusiness("Enrollment with this idempotency key is in progress", goerror.CodeConflict)
	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		return nil, goerror.NewBusiness("Enrollment with this idempotency key already completed", goerror.CodeConflict)
	case err != nil:
		var gerr *goerror.Error
		if errors.As(err, &gerr) {
			return nil, err
		}
		slog.ErrorContext(ctx, "failed to track enrollment idempotency", "account", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	return out, nil
}

func (s *Usecase) enroll(ctx context.Context, in EnrollInput) (*EnrollOutput, error) {
	unlock, err := s.lockAccount(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now()
	if err := s.rateLimited(ctx, entity.ScopeEnroll, in.Username, now); err != nil {
		return nil, err
	}

	if err := s.accountExists(ctx, in.Username); err != nil {
		return nil, err
	}

	if err := s.record(ctx, entity.ScopeEnroll, in.Username, entity.OutcomeAccepted, now); err != nil {
		return nil, err
	}

	owner, err := s.secrets.GetEnrollmentByContact(ctx, in.Email)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get enrollment by contact", "account", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}
	if err == nil && owner.Account != in.Username {
		return nil, entity.ErrContactInUse
	}

	key, err := s.totp.Generate(in.Username)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate totp secret", "account", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	sealed, err := s.box.Seal(key.Secret, s.secretScope(in.Username))
	if err != nil {
		slog.ErrorContext(ctx, "failed to seal totp secret", "account", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	// Sessions go first: a failure below leaves the old secret without any
	// live reset session bound to it.
	if err := s.sessions.DeleteSessions(ctx, in.Username); err != nil {
		slog.ErrorContext(ctx, "failed to delete reset sessions", "account", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	err = s.secrets.UpsertEnrollment(ctx, entity.Enrollment{
		Account:    in.Username,
		Contact:    in.Email,
		Secret:     sealed,
		KeyVersion: s.box.KeyVersion(),
		Digits:     key.Digits,
		Period:     key.Period,
		Algorithm:  key.Algorithm,
		EnrolledAt: now,
	})
	if errors.Is(err, goerror.ErrConflict) {
		return nil, entity.ErrContactInUse
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo upsert enrollment", "account", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "account enrolled", "account", in.Username, "key_version", s.box.KeyVersion())

	if err := s.deliver(ctx, in.Username, s.payload(key, in.Email)); err != nil {
		return nil, err
	}

	out := &EnrollOutput{
		Account:   key.Account,
		Issuer:    key.Issuer,
		Digits:    key.Digits,
		Period:    key.Period,
		Algorithm: key.Algorithm,
	}
	if s.cfg.GetBool("modules.reset.expose_provisioning") {
		out.URI = key.URI
		out.Secret = key.SecretB32
		out.QRCodePNG = key.QRCodePNG
	}

	return out, nil
}
