package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/otpreset/internal/pkg/config"
	"github.com/shandysiswandi/otpreset/internal/pkg/router"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
	"github.com/shandysiswandi/otpreset/internal/reset/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type fakeUsecase struct {
	enrollIn   usecase.EnrollInput
	verifyIn   usecase.VerifyOTPInput
	completeIn usecase.CompleteResetInput
	resendIn   usecase.ResendProvisioningInput

	err    error
	health *usecase.HealthOutput
}

func (f *fakeUsecase) Enroll(_ context.Context, in usecase.EnrollInput) (*usecase.EnrollOutput, error) {
	f.enrollIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.EnrollOutput{Account: in.Username, Issuer: "otpreset", Digits: 6, Period: 30, Algorithm: "SHA1"}, nil
}

func (f *fakeUsecase) ResendProvisioning(_ context.Context, in usecase.ResendProvisioningInput) error {
	f.resendIn = in
	return f.err
}

func (f *fakeUsecase) VerifyOTP(_ context.Context, in usecase.VerifyOTPInput) (*usecase.VerifyOTPOutput, error) {
	f.verifyIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.VerifyOTPOutput{SessionRef: "ref-1", ExpiresAt: time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)}, nil
}

func (f *fakeUsecase) CompleteReset(_ context.Context, in usecase.CompleteResetInput) error {
	f.completeIn = in
	return f.err
}

func (f *fakeUsecase) ListEnrollments(context.Context) ([]usecase.EnrollmentItem, error) {
	return []usecase.EnrollmentItem{
		{Account: "alice", Contact: "alice@example.com", KeyVersion: 1, EnrolledAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}, f.err
}

func (f *fakeUsecase) Health(context.Context) *usecase.HealthOutput {
	return f.health
}

func newTestServer(t *testing.T, uc *fakeUsecase) http.Handler {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("app: {}"), nil)
	require.NoError(t, err)

	r := router.NewRouter(router.Config{Config: cfg, UUID: fixedID("cid-1")})
	RegisterHTTPEndpoint(r, uc, "admin-secret")
	return r
}

func serve(h http.Handler, method, path, body string, headers map[string]string) (int, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}

func TestEnroll(t *testing.T) {
	uc := &fakeUsecase{}
	srv := newTestServer(t, uc)

	code, body := serve(srv, http.MethodPost, "/api/v1/reset/enroll", `{"username":"alice","email":"alice@example.com"}`, map[string]string{
		HeaderAdminKey:       "admin-secret",
		HeaderIdempotencyKey: "k-1",
	})
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, usecase.EnrollInput{Username: "alice", Email: "alice@example.com", IdempotencyKey: "k-1"}, uc.enrollIn)

	data := body["data"].(map[string]any)
	assert.Equal(t, "enrolled", data["status"])
	assert.Equal(t, "alice", data["account"])
	assert.Equal(t, "SHA1", data["algorithm"])
	assert.NotContains(t, data, "secret")
}

func TestEnroll_AdminKey(t *testing.T) {
	srv := newTestServer(t, &fakeUsecase{})

	for _, key := range []string{"", "wrong"} {
		code, body := serve(srv, http.MethodPost, "/api/v1/reset/enroll", `{}`, map[string]string{HeaderAdminKey: key})
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "Admin key required", body["message"])
	}

	code, _ := serve(srv, http.MethodGet, "/api/v1/reset/enrollments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestVerifyOTP(t *testing.T) {
	uc := &fakeUsecase{}
	srv := newTestServer(t, uc)

	code, body := serve(srv, http.MethodPost, "/api/v1/reset/verify", `{"username":"alice","code":"123456"}`, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, usecase.VerifyOTPInput{Username: "alice", Code: "123456"}, uc.verifyIn)
	assert.Equal(t, map[string]any{
		"status":      "verified",
		"session_ref": "ref-1",
		"expires_at":  "2026-03-01T12:05:00Z",
	}, body["data"])
}

func TestVerifyOTP_BadBody(t *testing.T) {
	srv := newTestServer(t, &fakeUsecase{})

	code, _ := serve(srv, http.MethodPost, "/api/v1/reset/verify", `{"username":"alice","code":"1","extra":true}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{err: entity.ErrAccountNotFound, status: http.StatusNotFound},
		{err: entity.ErrInvalidCode, status: http.StatusUnauthorized},
		{err: entity.ErrAlreadyUsed, status: http.StatusConflict},
		{err: entity.ErrRateLimited, status: http.StatusTooManyRequests},
		{err: entity.ErrSessionExpired, status: http.StatusGone},
		{err: entity.ErrWeakPassword, status: http.StatusUnprocessableEntity},
		{err: entity.ErrApplierFailure.Wrap(context.DeadlineExceeded), status: http.StatusBadGateway},
		{err: entity.ErrSessionNotFound, status: http.StatusNotFound},
		{err: entity.ErrSessionCompleted, status: http.StatusGone},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			srv := newTestServer(t, &fakeUsecase{err: tt.err})

			code, body := serve(srv, http.MethodPost, "/api/v1/reset/complete",
				`{"session_ref":"ref-1","new_password":"new password 1"}`, nil)
			assert.Equal(t, tt.status, code)
			assert.NotEmpty(t, body["error_kind"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestCompleteReset(t *testing.T) {
	uc := &fakeUsecase{}
	srv := newTestServer(t, uc)

	code, body := serve(srv, http.MethodPost, "/api/v1/reset/complete",
		`{"session_ref":"ref-1","new_password":"new password 1","confirm_password":"new password 1"}`, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"status": "success"}, body["data"])
	assert.Equal(t, "new password 1", uc.completeIn.NewPassword)
	assert.Equal(t, "ref-1", uc.completeIn.SessionRef)
}

func TestResendProvisioning(t *testing.T) {
	uc := &fakeUsecase{}
	srv := newTestServer(t, uc)

	code, body := serve(srv, http.MethodPost, "/api/v1/reset/enroll/resend", `{"username":"alice"}`,
		map[string]string{HeaderAdminKey: "admin-secret"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"status": "sent"}, body["data"])
	assert.Equal(t, "alice", uc.resendIn.Username)
}

func TestListEnrollments(t *testing.T) {
	srv := newTestServer(t, &fakeUsecase{})

	code, body := serve(srv, http.MethodGet, "/api/v1/reset/enrollments", "", map[string]string{HeaderAdminKey: "admin-secret"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{map[string]any{
		"account":     "alice",
		"contact":     "alice@example.com",
		"key_version": float64(1),
		"enrolled_at": "2026-03-01T12:00:00Z",
	}}, body["data"])
	assert.Equal(t, map[string]any{"total": float64(1)}, body["meta"])
}

func TestHealth(t *testing.T) {
	uc := &fakeUsecase{health: &usecase.HealthOutput{Status: usecase.HealthOK, Services: map[string]string{"redis": "ok"}}}
	srv := newTestServer(t, uc)

	code, body := serve(srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"status": "ok", "services": map[string]any{"redis": "ok"}}, body["data"])

	uc.health = &usecase.HealthOutput{Status: usecase.HealthDegraded, Services: map[string]string{"redis": "down"}}
	code, _ = serve(srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
