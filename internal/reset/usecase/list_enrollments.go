package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

type EnrollmentItem struct {
	Account    string
	Contact    string
	KeyVersion uint16
	EnrolledAt time.Time
}

// ListEnrollments returns every enrollment without its secret.
func (s *Usecase) ListEnrollments(ctx context.Context) ([]EnrollmentItem, error) {
	ctx, span := s.startSpan(ctx, "ListEnrollments")
	defer span.End()

	items, err := s.secrets.ListEnrollments(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list enrollments", "error", err)
		return nil, goerror.NewServer(err)
	}

	return lo.Map(items, func(e entity.Enrollment, _ int) EnrollmentItem {
		return EnrollmentItem{
			Account:    e.Account,
			Contact:    e.Contact,
			KeyVersion: e.KeyVersion,
			EnrolledAt: e.EnrolledAt,
		}
	}), nil
}
