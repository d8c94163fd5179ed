// Package logsink is a delivery boundary for local development: the payload
// is written to the log instead of being sent anywhere.
package logsink

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

type Log struct{}

func New() *Log {
	return &Log{}
}

func (*Log) Deliver(ctx context.Context, account string, p entity.ProvisioningPayload) error {
	slog.InfoContext(ctx, "provisioning payload ready", "account", account, "contact", p.Contact, "issuer", p.Issuer)
	slog.DebugContext(ctx, "provisioning payload", "account", account, "secret", p.Secret, "uri", p.URI)
	return nil
}
