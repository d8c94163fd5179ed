package usecase

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"
)

const (
	HealthOK       = "ok"
	HealthDown     = "down"
	HealthDegraded = "degraded"
)

type HealthOutput struct {
	Status   string
	Services map[string]string
}

// Health pings every configured backing service.
func (s *Usecase) Health(ctx context.Context) *HealthOutput {
	ctx, span := s.startSpan(ctx, "Health")
	defer span.End()

	out := &HealthOutput{Status: HealthOK, Services: make(map[string]string, len(s.pings))}

	for _, name := range slices.Sorted(maps.Keys(s.pings)) {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.pings[name](pctx)
		cancel()

		if err != nil {
			slog.WarnContext(ctx, "health check failed", "service", name, "error", err)
			out.Services[name] = HealthDown
			out.Status = HealthDegraded
			continue
		}
		out.Services[name] = HealthOK
	}

	return out
}
