package inbound

import (
	"net/http"
	"time"
)

type EnrollRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type EnrollResponse struct {
	Status    string `json:"status"`
	Account   string `json:"account"`
	Issuer    string `json:"issuer"`
	Digits    int    `json:"digits"`
	Period    int    `json:"period"`
	Algorithm string `json:"algorithm"`
	URI       string `json:"uri,omitempty"`
	Secret    string `json:"secret,omitempty"`
	QRCodePNG []byte `json:"qr_code_png,omitempty"`
}

func (EnrollResponse) Message() string {
	return "Enrollment successful. The authenticator setup has been sent to the enrolled contact."
}

func (EnrollResponse) StatusCode() int {
	return http.StatusCreated
}

type ResendProvisioningRequest struct {
	Username string `json:"username"`
}

type ResendProvisioningResponse struct {
	Status string `json:"status"`
}

func (ResendProvisioningResponse) Message() string {
	return "The authenticator setup has been sent again to the enrolled contact."
}

type VerifyOTPRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type VerifyOTPResponse struct {
	Status     string    `json:"status"`
	SessionRef string    `json:"session_ref"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (VerifyOTPResponse) Message() string {
	return "Code verified. Submit the new password before the session expires."
}

type CompleteResetRequest struct {
	SessionRef      string `json:"session_ref"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type CompleteResetResponse struct {
	Status string `json:"status"`
}

func (CompleteResetResponse) Message() string {
	return "Password has been reset."
}

type EnrollmentResponse struct {
	Account    string    `json:"account"`
	Contact    string    `json:"contact"`
	KeyVersion uint16    `json:"key_version"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

type ListEnrollmentsResponse []EnrollmentResponse

func (r ListEnrollmentsResponse) Meta() map[string]any {
	return map[string]any{"total": len(r)}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func (r HealthResponse) Message() string {
	return "service is " + r.Status
}

func (r HealthResponse) StatusCode() int {
	if r.Status != "ok" {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
