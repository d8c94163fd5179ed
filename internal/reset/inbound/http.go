package inbound

import (
	"context"

	"github.com/shandysiswandi/otpreset/internal/pkg/router"
	"github.com/shandysiswandi/otpreset/internal/reset/usecase"
)

// HeaderAdminKey carries the operator key of the admin endpoints.
const HeaderAdminKey = "X-Admin-Key"

type uc interface {
	Enroll(ctx context.Context, in usecase.EnrollInput) (*usecase.EnrollOutput, error)
	ResendProvisioning(ctx context.Context, in usecase.ResendProvisioningInput) error
	VerifyOTP(ctx context.Context, in usecase.VerifyOTPInput) (*usecase.VerifyOTPOutput, error)
	CompleteReset(ctx context.Context, in usecase.CompleteResetInput) error
	ListEnrollments(ctx context.Context) ([]usecase.EnrollmentItem, error)
	Health(ctx context.Context) *usecase.HealthOutput
}

func RegisterHTTPEndpoint(r *router.Router, uc uc, adminKey string) {
	end := &HTTPEndpoint{uc: uc}
	admin := router.AdminKey(HeaderAdminKey, adminKey)

	// Enrollment
	r.POST("/api/v1/reset/enroll", end.Enroll, admin)
	r.POST("/api/v1/reset/enroll/resend", end.ResendProvisioning, admin)
	r.GET("/api/v1/reset/enrollments", end.ListEnrollments, admin)

	// Reset
	r.POST("/api/v1/reset/verify", end.VerifyOTP)
	r.POST("/api/v1/reset/complete", end.CompleteReset)

	r.GET("/health", end.Health)
}
