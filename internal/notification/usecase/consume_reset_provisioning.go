package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpreset/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpreset/internal/shared/mailtpl"
)

type ConsumeResetProvisioningInput struct {
	EventID   string `validate:"required,max=128"`
	Account   string `validate:"required,username"`
	Contact   string `validate:"required,email"`
	Issuer    string `validate:"required"`
	Secret    string `validate:"required,alphanum"`
	URI       string `validate:"required,startswith=otpauth://totp/"`
	Digits    int    `validate:"required,gt=0"`
	Period    int    `validate:"required,gt=0"`
	Algorithm string `validate:"required"`
}

// ErrProvisioningInProgress is returned when another consumer is mailing the
// same event; the broker redelivers it later.
var ErrProvisioningInProgress = errors.New("notification: provisioning event is being processed")

// ConsumeResetProvisioning mails an authenticator provisioning payload. Each
// event is mailed at most once; an invalid event is dropped.
func (s *Usecase) ConsumeResetProvisioning(ctx context.Context, in ConsumeResetProvisioningInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeResetProvisioning")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "event_id", in.EventID, "error", err)
		return nil
	}

	send := func(ctx context.Context) error { return s.sendProvisioning(ctx, in) }
	if s.idemp == nil {
		return send(ctx)
	}

	err := s.idemp.Exec(ctx, "notification:provisioning:"+in.EventID, send,
		idempotency.WithStateTTL(s.dedupeTTL()),
	)
	switch {
	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		slog.InfoContext(ctx, "provisioning event already mailed", "event_id", in.EventID)
		return nil
	case errors.Is(err, idempotency.ErrAlreadyInProgress):
		return ErrProvisioningInProgress
	}

	return err
}

func (s *Usecase) sendProvisioning(ctx context.Context, in ConsumeResetProvisioningInput) error {
	var qr []byte
	if s.qr != nil {
		png, err := s.qr(in.URI)
		if err != nil {
			slog.WarnContext(ctx, "failed to render provisioning qr code, mailing without it", "event_id", in.EventID, "error", err)
		}
		qr = png
	}

	msg, err := mailtpl.ProvisioningMessage(mailtpl.Provisioning{
		Account:   in.Account,
		Contact:   in.Contact,
		Issuer:    in.Issuer,
		Secret:    in.Secret,
		URI:       in.URI,
		QRCodePNG: qr,
		Digits:    in.Digits,
		Period:    in.Period,
		Algorithm: in.Algorithm,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to render provisioning email", "event_id", in.EventID, "error", err)
		return err
	}

	if err := s.repoMail.Send(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to send provisioning email", "event_id", in.EventID, "account", in.Account, "error", err)
		return err
	}

	slog.InfoContext(ctx, "provisioning email sent", "event_id", in.EventID, "account", in.Account)

	return nil
}

func (s *Usecase) dedupeTTL() time.Duration {
	if d := s.cfg.GetSecond("modules.notification.dedupe_ttl_seconds"); d > 0 {
		return d
	}
	return 24 * time.Hour
}
