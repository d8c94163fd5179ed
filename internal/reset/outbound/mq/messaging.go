package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/messaging"
	"github.com/shandysiswandi/otpreset/internal/pkg/uid"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
	"github.com/shandysiswandi/otpreset/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

// Messaging delivers provisioning payloads by publishing an event that the
// notification module turns into mail. Delivery succeeds once the broker has
// accepted the event.
type Messaging struct {
	client messaging.Publisher
	uuid   uid.StringID
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, uuid uid.StringID, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, uuid: uuid, ins: ins}
}

func (m *Messaging) Deliver(ctx context.Context, account string, p entity.ProvisioningPayload) error {
	ctx, span := m.ins.Tracer("reset.outbound.mq").Start(ctx, "Deliver")
	defer span.End()

	body, err := json.Marshal(event.ResetProvisioningMessage{
		EventID:   m.uuid.Generate(),
		Account:   p.Account,
		Contact:   p.Contact,
		Issuer:    p.Issuer,
		Secret:    p.Secret,
		URI:       p.URI,
		Digits:    p.Digits,
		Period:    p.Period,
		Algorithm: p.Algorithm,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if err := m.client.Publish(ctx, event.ResetProvisioningDestination, messaging.Message{
		Key:     []byte(account),
		Body:    body,
		Headers: map[string]string{keyOfCorrelationID: cID},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
