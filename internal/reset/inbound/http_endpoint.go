package inbound

import (
	"github.com/samber/lo"
	"github.com/shandysiswandi/otpreset/internal/pkg/router"
	"github.com/shandysiswandi/otpreset/internal/reset/usecase"
)

// HeaderIdempotencyKey deduplicates retried enrollments.
const HeaderIdempotencyKey = "Idempotency-Key"

// HTTPEndpoint exposes HTTP handlers for enrollment and password reset.
type HTTPEndpoint struct {
	uc uc
}

// Enroll binds a fresh authenticator secret to an account.
// @Summary Enroll account
// @Description Generates a new TOTP secret for the account and sends the provisioning payload to the contact. Replaces any previous secret.
// @Tags Reset, Enrollment
// @Accept json
// @Produce json
// @Param X-Admin-Key header string true "Admin key"
// @Param Idempotency-Key header string false "Idempotency key"
// @Param request body EnrollRequest true "Enroll payload"
// @Success 201 {object} router.successResponse{data=EnrollResponse} "Enrolled"
// @Failure 404 {object} router.errorResponse "Account not found"
// @Failure 409 {object} router.errorResponse "Contact in use"
// @Failure 429 {object} router.errorResponse "Rate limited"
// @Failure 502 {object} router.errorResponse "Delivery failure"
// @Router /api/v1/reset/enroll [post]
func (h *HTTPEndpoint) Enroll(r *router.Request) (any, error) {
	var req EnrollRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Enroll(r.Context(), usecase.EnrollInput{
		Username:       req.Username,
		Email:          req.Email,
		IdempotencyKey: r.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		return nil, err
	}

	return EnrollResponse{
		Status:    "enrolled",
		Account:   resp.Account,
		Issuer:    resp.Issuer,
		Digits:    resp.Digits,
		Period:    resp.Period,
		Algorithm: resp.Algorithm,
		URI:       resp.URI,
		Secret:    resp.Secret,
		QRCodePNG: resp.QRCodePNG,
	}, nil
}

// ResendProvisioning delivers the current secret again.
// @Summary Resend provisioning
// @Tags Reset, Enrollment
// @Accept json
// @Produce json
// @Param X-Admin-Key header string true "Admin key"
// @Param request body ResendProvisioningRequest true "Resend payload"
// @Success 200 {object} router.successResponse{data=ResendProvisioningResponse} "Sent"
// @Failure 404 {object} router.errorResponse "Account not found"
// @Failure 429 {object} router.errorResponse "Rate limited"
// @Router /api/v1/reset/enroll/resend [post]
func (h *HTTPEndpoint) ResendProvisioning(r *router.Request) (any, error) {
	var req ResendProvisioningRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.ResendProvisioning(r.Context(), usecase.ResendProvisioningInput{
		Username: req.Username,
	}); err != nil {
		return nil, err
	}

	return ResendProvisioningResponse{Status: "sent"}, nil
}

// VerifyOTP exchanges a valid code for a reset session reference.
// @Summary Verify code
// @Description Checks the 6 digit code of the enrolled authenticator. Each code is accepted once.
// @Tags Reset
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Verify payload"
// @Success 200 {object} router.successResponse{data=VerifyOTPResponse} "Verified"
// @Failure 401 {object} router.errorResponse "Invalid code"
// @Failure 404 {object} router.errorResponse "Account not found"
// @Failure 409 {object} router.errorResponse "Code already used"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Rate limited"
// @Router /api/v1/reset/verify [post]
func (h *HTTPEndpoint) VerifyOTP(r *router.Request) (any, error) {
	var req VerifyOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyOTP(r.Context(), usecase.VerifyOTPInput{
		Username: req.Username,
		Code:     req.Code,
	})
	if err != nil {
		return nil, err
	}

	return VerifyOTPResponse{
		Status:     "verified",
		SessionRef: resp.SessionRef,
		ExpiresAt:  resp.ExpiresAt,
	}, nil
}

// CompleteReset sets the new password of a verified session.
// @Summary Complete reset
// @Tags Reset
// @Accept json
// @Produce json
// @Param request body CompleteResetRequest true "Complete payload"
// @Success 200 {object} router.successResponse{data=CompleteResetResponse} "Password reset"
// @Failure 404 {object} router.errorResponse "Session not found"
// @Failure 409 {object} router.errorResponse "Session not verified"
// @Failure 410 {object} router.errorResponse "Session expired or completed"
// @Failure 422 {object} router.errorResponse "Weak password"
// @Failure 502 {object} router.errorResponse "Applier failure"
// @Router /api/v1/reset/complete [post]
func (h *HTTPEndpoint) CompleteReset(r *router.Request) (any, error) {
	var req CompleteResetRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.CompleteReset(r.Context(), usecase.CompleteResetInput{
		SessionRef:      req.SessionRef,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}); err != nil {
		return nil, err
	}

	return CompleteResetResponse{Status: "success"}, nil
}

// ListEnrollments returns every enrolled account without secrets.
// @Summary List enrollments
// @Tags Reset, Enrollment
// @Produce json
// @Param X-Admin-Key header string true "Admin key"
// @Success 200 {object} router.successResponse{data=ListEnrollmentsResponse} "Enrollments"
// @Failure 401 {object} router.errorResponse "Admin key required"
// @Router /api/v1/reset/enrollments [get]
func (h *HTTPEndpoint) ListEnrollments(r *router.Request) (any, error) {
	items, err := h.uc.ListEnrollments(r.Context())
	if err != nil {
		return nil, err
	}

	return ListEnrollmentsResponse(lo.Map(items, func(e usecase.EnrollmentItem, _ int) EnrollmentResponse {
		return EnrollmentResponse{
			Account:    e.Account,
			Contact:    e.Contact,
			KeyVersion: e.KeyVersion,
			EnrolledAt: e.EnrolledAt,
		}
	})), nil
}

// Health reports the backing services.
func (h *HTTPEndpoint) Health(r *router.Request) (any, error) {
	out := h.uc.Health(r.Context())
	return HealthResponse{Status: out.Status, Services: out.Services}, nil
}
