package notification

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpreset/internal/notification/inbound"
	"github.com/shandysiswandi/otpreset/internal/notification/outbound/email"
	"github.com/shandysiswandi/otpreset/internal/notification/usecase"
	"github.com/shandysiswandi/otpreset/internal/pkg/config"
	"github.com/shandysiswandi/otpreset/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpreset/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/mail"
	"github.com/shandysiswandi/otpreset/internal/pkg/messaging"
	"github.com/shandysiswandi/otpreset/internal/pkg/otp"
	"github.com/shandysiswandi/otpreset/internal/pkg/uid"
	"github.com/shandysiswandi/otpreset/internal/pkg/validator"
)

type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	Messaging   messaging.Consumer         `validate:"required"`
	Mail        mail.Mail                  `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repoMail := email.New(dep.Mail, dep.Instrument)

	uc := usecase.NewNotification(usecase.Dependency{
		RepoMail:    repoMail,
		Idempotency: dep.Idempotency,
		QRCode:      otp.QRCodeFromURI,
		Config:      dep.Config,
		Validator:   dep.Validator,
		Instrument:  dep.Instrument,
	})

	started := inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)
	slog.Info("notification module initialized", "consumers", started)

	return nil
}
