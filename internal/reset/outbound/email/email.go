package email

import (
	"context"

	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/mail"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
	"github.com/shandysiswandi/otpreset/internal/shared/mailtpl"
	"go.opentelemetry.io/otel/codes"
)

// Mail delivers provisioning payloads by mail from this process.
type Mail struct {
	client mail.Mail
	ins    instrument.Instrumentation
}

func New(client mail.Mail, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, ins: ins}
}

func (m *Mail) Deliver(ctx context.Context, _ string, p entity.ProvisioningPayload) error {
	ctx, span := m.ins.Tracer("reset.outbound.email").Start(ctx, "Deliver")
	defer span.End()

	msg, err := mailtpl.ProvisioningMessage(mailtpl.Provisioning{
		Account:   p.Account,
		Contact:   p.Contact,
		Issuer:    p.Issuer,
		Secret:    p.Secret,
		URI:       p.URI,
		QRCodePNG: p.QRCodePNG,
		Digits:    p.Digits,
		Period:    p.Period,
		Algorithm: p.Algorithm,
	})
	if err == nil {
		err = m.client.Send(ctx, msg)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
