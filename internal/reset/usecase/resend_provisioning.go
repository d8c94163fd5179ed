package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

type ResendProvisioningInput struct {
	Username string `validate:"required,username"`
}

// ResendProvisioning delivers the stored secret of an enrolled account again
// to its enrolled contact. The secret itself is not changed.
func (s *Usecase) ResendProvisioning(ctx context.Context, in ResendProvisioningInput) error {
	ctx, span := s.startSpan(ctx, "ResendProvisioning")
	defer span.End()

	in.Username = strings.TrimSpace(strings.ToLower(in.Username))

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	unlock, err := s.lockAccount(ctx, in.Username)
	if err != nil {
		return err
	}
	defer unlock()

	enr, err := s.secrets.GetEnrollment(ctx, in.Username)
	if errors.Is(err, goerror.ErrNotFound) {
		return entity.ErrAccountNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get enrollment", "account", in.Username, "error", err)
		return goerror.NewServer(err)
	}

	now := s.clock.Now()
	if err := s.rateLimited(ctx, entity.ScopeResend, in.Username, now); err != nil {
		return err
	}

	if err := s.accountExists(ctx, in.Username); err != nil {
		return err
	}

	if err := s.record(ctx, entity.ScopeResend, in.Username, entity.OutcomeAccepted, now); err != nil {
		return err
	}

	secret, err := s.box.Open(enr.Secret, s.secretScope(in.Username))
	if err != nil {
		slog.ErrorContext(ctx, "failed to open totp secret", "account", in.Username, "key_version", enr.KeyVersion, "error", err)
		return goerror.NewServer(err)
	}

	key, err := s.totp.KeyFromSecret(in.Username, secret)
	if err != nil {
		slog.ErrorContext(ctx, "failed to rebuild provisioning key", "account", in.Username, "error", err)
		return goerror.NewServer(err)
	}

	return s.deliver(ctx, in.Username, s.payload(key, enr.Contact))
}
