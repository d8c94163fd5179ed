package usecase

import (
	"context"

	"github.com/shandysiswandi/otpreset/internal/pkg/config"
	"github.com/shandysiswandi/otpreset/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/mail"
	"github.com/shandysiswandi/otpreset/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) error
}

// qrRenderer turns a provisioning URI into a PNG QR code.
type qrRenderer func(uri string) ([]byte, error)

type Usecase struct {
	repoMail  repoMail
	idemp     idempotency.Idempotency
	qr        qrRenderer
	cfg       config.Config
	validator validator.Validator
	ins       instrument.Instrumentation
}

type Dependency struct {
	RepoMail    repoMail
	Idempotency idempotency.Idempotency
	QRCode      qrRenderer
	Config      config.Config
	Validator   validator.Validator
	Instrument  instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	return &Usecase{
		repoMail:  dep.RepoMail,
		idemp:     dep.Idempotency,
		qr:        dep.QRCode,
		cfg:       dep.Config,
		validator: dep.Validator,
		ins:       dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}
