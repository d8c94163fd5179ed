// Package cache implements the replay and rate ledger and the session store
// on redis, so every replica shares one view of attempts and sessions.
package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const prefix = "reset:"

type Cache struct {
	client redis.UniversalClient
	ins    instrument.Instrumentation
}

func NewCache(client redis.UniversalClient, ins instrument.Instrumentation) *Cache {
	return &Cache{client: client, ins: ins}
}

func (c *Cache) mapError(err error) error {
	if errors.Is(err, redis.Nil) {
		return goerror.ErrNotFound
	}
	return err
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("reset.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
