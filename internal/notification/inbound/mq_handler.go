package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/otpreset/internal/notification/usecase"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/messaging"
	"github.com/shandysiswandi/otpreset/internal/pkg/uid"
	"github.com/shandysiswandi/otpreset/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, d messaging.Delivery) context.Context {
	if cID := d.Header(keyOfCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) ResetProvisioningNotification(ctx context.Context, d messaging.Delivery) error {
	ctx = h.ensureCorrelationID(ctx, d)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "ResetProvisioningNotification")
	defer span.End()

	// The body carries the shared secret; only its size is logged.
	slog.InfoContext(ctx, "consume: reset provisioning notification", "topic", d.Topic, "msg_size", len(d.Body))

	var payload event.ResetProvisioningMessage
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of reset provisioning notification", "msg_size", len(d.Body), "error", err)
		return nil
	}

	if err := h.uc.ConsumeResetProvisioning(ctx, usecase.ConsumeResetProvisioningInput{
		EventID:   payload.EventID,
		Account:   payload.Account,
		Contact:   payload.Contact,
		Issuer:    payload.Issuer,
		Secret:    payload.Secret,
		URI:       payload.URI,
		Digits:    payload.Digits,
		Period:    payload.Period,
		Algorithm: payload.Algorithm,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume reset provisioning", "event_id", payload.EventID, "error", err)
		return err
	}

	return nil
}
