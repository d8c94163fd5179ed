package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/otpreset/internal/pkg/config"
	"github.com/shandysiswandi/otpreset/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/messaging"
	"github.com/shandysiswandi/otpreset/internal/pkg/uid"
	"github.com/shandysiswandi/otpreset/internal/shared/event"
)

// RegisterMQConsumer starts the consumers listed in
// modules.notification.consumer_names. It returns the names it started.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	consumer messaging.Consumer,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) []string {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enableConsumerNames := cfg.GetArray("modules.notification.consumer_names")
	concurrency := cfg.GetInt("modules.notification.concurrency")

	var consumers = []struct {
		name    string
		topic   string // destination where publisher sent message
		group   string // kafka consumer group / nats queue group
		handler messaging.Handler
	}{
		{
			name:    event.ResetProvisioningConsumerNotification,
			topic:   event.ResetProvisioningDestination,
			group:   event.ResetProvisioningConsumerNotification,
			handler: mqHandler.ResetProvisioningNotification,
		},
	}

	var started []string
	for _, c := range consumers {
		if !slices.Contains(enableConsumerNames, c.name) {
			continue
		}

		ok := routine.Go(ctx, func(pCtx context.Context) error {
			slog.InfoContext(ctx, "Running job for handling consumer", "consumer", c.name)
			return consumer.Consume(pCtx,
				c.topic,
				c.handler,
				messaging.WithGroup(c.group),
				messaging.WithConcurrency(concurrency),
			)
		})
		if ok {
			started = append(started, c.name)
		}
	}

	return started
}
