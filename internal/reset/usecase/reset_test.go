package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/pkg/hash"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireErrorType(t *testing.T, err error, typ goerror.Type, code goerror.Code) {
	t.Helper()

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, typ, gerr.Type())
	assert.Equal(t, code, gerr.Code())
}

func TestResetFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	secret := h.enroll(t, "alice")
	assert.Len(t, secret, 20)

	ref := h.verify(t, "alice", secret)
	require.NotEmpty(t, ref)

	sess, err := h.sessions.GetSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStateOtpVerified, sess.State)
	assert.Equal(t, base.Add(5*time.Minute), sess.ExpiresAt)
	assert.NotEqual(t, ref, sess.RefHash)

	require.NoError(t, h.uc.CompleteReset(ctx, CompleteResetInput{
		SessionRef:      ref,
		NewPassword:     "correct horse battery",
		ConfirmPassword: "correct horse battery",
	}))
	assert.Equal(t, []string{"alice:correct horse battery"}, h.applier.Calls())

	sess, err = h.sessions.GetSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStateCompleted, sess.State)

	err = h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: "another password"})
	require.ErrorIs(t, err, entity.ErrSessionCompleted)
	assert.Len(t, h.applier.Calls(), 1)
}

func TestVerifyOTP_InvalidCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	secret := h.enroll(t, "alice")

	_, err := h.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", Code: h.wrongCode(t, secret, base)})
	require.ErrorIs(t, err, entity.ErrInvalidCode)

	attempts := h.ledger.Attempts(entity.ScopeVerify, "alice")
	require.Len(t, attempts, 1)
	assert.Equal(t, entity.OutcomeRejectedCode, attempts[0].Outcome)

	sess, err := h.sessions.GetSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStateAwaitingOtp, sess.State)
}

func TestVerifyOTP_AdjacentWindows(t *testing.T) {
	h := newHarness(t)
	secret := h.enroll(t, "alice")

	for _, offset := range []time.Duration{-30 * time.Second, 30 * time.Second} {
		code := h.codeAt(t, secret, base.Add(offset))
		out, err := h.uc.VerifyOTP(context.Background(), VerifyOTPInput{Username: "alice", Code: code})
		require.NoError(t, err, "offset %s", offset)
		assert.NotEmpty(t, out.SessionRef)
	}

	_, err := h.uc.VerifyOTP(context.Background(), VerifyOTPInput{
		Username: "alice",
		Code:     h.codeAt(t, secret, base.Add(2*time.Minute)),
	})
	require.ErrorIs(t, err, entity.ErrInvalidCode)
}

func TestVerifyOTP_Replay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	secret := h.enroll(t, "alice")

	code := h.codeAt(t, secret, base)
	first, err := h.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", Code: code})
	require.NoError(t, err)

	_, err = h.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", Code: code})
	require.ErrorIs(t, err, entity.ErrAlreadyUsed)

	// Still inside the skew one window later.
	h.clock.Add(30 * time.Second)
	_, err = h.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", Code: code})
	require.ErrorIs(t, err, entity.ErrAlreadyUsed)

	attempts := h.ledger.Attempts(entity.ScopeVerify, "alice")
	require.Len(t, attempts, 3)
	assert.Equal(t, entity.OutcomeAccepted, attempts[0].Outcome)
	assert.Equal(t, entity.OutcomeRejectedReplay, attempts[1].Outcome)
	assert.Equal(t, entity.OutcomeRejectedReplay, attempts[2].Outcome)

	// The verified session of the first code survives the replays.
	require.NoError(t, h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: first.SessionRef, NewPassword: "new password 1"}))
}

func TestVerifyOTP_RateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	secret := h.enroll(t, "bob")
	wrong := h.wrongCode(t, secret, base)

	for range 5 {
		_, err := h.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "bob", Code: wrong})
		require.ErrorIs(t, err, entity.ErrInvalidCode)
	}

	_, err := h.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "bob", Code: h.codeAt(t, secret, base)})
	require.ErrorIs(t, err, entity.ErrRateLimited)

	attempts := h.ledger.Attempts(entity.ScopeVerify, "bob")
	require.Len(t, attempts, 6)
	assert.Equal(t, entity.OutcomeRateLimited, attempts[5].Outcome)

	h.clock.Add(time.Hour + time.Second)
	_, err = h.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "bob", Code: h.codeAt(t, secret, h.clock.Now())})
	require.NoError(t, err)
}

func TestVerifyOTP_UnknownAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, account := range []string{"carol", "dave"} {
		_, err := h.uc.VerifyOTP(ctx, VerifyOTPInput{Username: account, Code: "123456"})
		require.ErrorIs(t, err, entity.ErrAccountNotFound)
		assert.Empty(t, h.ledger.Attempts(entity.ScopeVerify, account))
	}
}

func TestVerifyOTP_InvalidInput(t *testing.T) {
	h := newHarness(t)
	h.enroll(t, "alice")

	tests := []struct {
		name string
		in   VerifyOTPInput
	}{
		{name: "EmptyUsername", in: VerifyOTPInput{Code: "123456"}},
		{name: "BadUsername", in: VerifyOTPInput{Username: "alice:root", Code: "123456"}},
		{name: "ShortCode", in: VerifyOTPInput{Username: "alice", Code: "12345"}},
		{name: "LetterCode", in: VerifyOTPInput{Username: "alice", Code: "12a456"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.uc.VerifyOTP(context.Background(), tt.in)
			requireErrorType(t, err, goerror.TypeValidation, goerror.CodeInvalidInput)
		})
	}

	assert.Empty(t, h.ledger.Attempts(entity.ScopeVerify, "alice"))
}

func TestVerifyOTP_ConcurrentSameCode(t *testing.T) {
	h := newHarness(t)
	secret := h.enroll(t, "alice")
	code := h.codeAt(t, secret, base)

	var ok, used atomic.Int32
	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			_, err := h.uc.VerifyOTP(context.Background(), VerifyOTPInput{Username: "alice", Code: code})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, entity.ErrAlreadyUsed):
				used.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(4), used.Load())
}

func TestCompleteReset_Expired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	secret := h.enroll(t, "alice")
	ref := h.verify(t, "alice", secret)

	h.clock.Add(5*time.Minute + time.Second)

	err := h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: "new password 1"})
	require.ErrorIs(t, err, entity.ErrSessionExpired)

	err = h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: "new password 1"})
	require.ErrorIs(t, err, entity.ErrSessionNotFound)
	assert.Empty(t, h.applier.Calls())
}

func TestCompleteReset_UnknownRef(t *testing.T) {
	h := newHarness(t)

	err := h.uc.CompleteReset(context.Background(), CompleteResetInput{SessionRef: "no-such-ref", NewPassword: "new password 1"})
	require.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestCompleteReset_Password(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	secret := h.enroll(t, "alice")
	ref := h.verify(t, "alice", secret)

	err := h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: "short"})
	require.ErrorIs(t, err, entity.ErrWeakPassword)

	err = h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: "long enough 1", ConfirmPassword: "long enough 2"})
	requireErrorType(t, err, goerror.TypeValidation, goerror.CodeInvalidInput)

	assert.Empty(t, h.applier.Calls())

	sess, err := h.sessions.GetSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStateOtpVerified, sess.State)

	require.NoError(t, h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: "long enough 1"}))
}

func TestCompleteReset_PasswordByteLimit(t *testing.T) {
	t.Run("MultibyteOverDefault", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		ref := h.verify(t, "alice", h.enroll(t, "alice"))

		// 72 runes, 144 bytes.
		err := h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: strings.Repeat("é", 72)})
		require.ErrorIs(t, err, entity.ErrWeakPassword)
		assert.Empty(t, h.applier.Calls())

		require.NoError(t, h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: strings.Repeat("é", 36)}))
	})

	t.Run("PepperedHasher", func(t *testing.T) {
		limit := hash.NewBcrypt(4, "pepper").MaxInputBytes()
		h := newHarness(t, func(dep *Dependency) { dep.MaxPasswordBytes = limit })
		ctx := context.Background()
		ref := h.verify(t, "alice", h.enroll(t, "alice"))

		err := h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: strings.Repeat("a", 72)})
		require.ErrorIs(t, err, entity.ErrWeakPassword)
		assert.Empty(t, h.applier.Calls())

		sess, err := h.sessions.GetSession(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, entity.SessionStateOtpVerified, sess.State)

		require.NoError(t, h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: strings.Repeat("a", limit)}))
		assert.Len(t, h.applier.Calls(), 1)
	})
}

func TestCompleteReset_ApplierFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	secret := h.enroll(t, "alice")
	ref := h.verify(t, "alice", secret)

	h.applier.set(errBoom, false)
	err := h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: "new password 1"})
	require.ErrorIs(t, err, entity.ErrApplierFailure)
	require.ErrorIs(t, err, errBoom)

	sess, err := h.sessions.GetSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStateOtpVerified, sess.State)

	h.applier.set(nil, false)
	require.NoError(t, h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: "new password 1"}))
	assert.Equal(t, []string{"alice:new password 1"}, h.applier.Calls())
}

func TestCompleteReset_ApplierTimeout(t *testing.T) {
	h := newHarness(t)
	secret := h.enroll(t, "alice")
	ref := h.verify(t, "alice", secret)

	h.applier.set(nil, true)
	err := h.uc.CompleteReset(context.Background(), CompleteResetInput{SessionRef: ref, NewPassword: "new password 1"})
	require.ErrorIs(t, err, entity.ErrApplierFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompleteReset_Concurrent(t *testing.T) {
	h := newHarness(t)
	secret := h.enroll(t, "alice")
	ref := h.verify(t, "alice", secret)

	var ok, completed atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			err := h.uc.CompleteReset(context.Background(), CompleteResetInput{SessionRef: ref, NewPassword: "new password 1"})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, entity.ErrSessionCompleted):
				completed.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(7), completed.Load())
	assert.Len(t, h.applier.Calls(), 1)
}

func TestEnroll(t *testing.T) {
	t.Run("ExposesProvisioning", func(t *testing.T) {
		h := newHarness(t)

		out, err := h.uc.Enroll(context.Background(), EnrollInput{Username: " Alice ", Email: "Alice@Example.com"})
		require.NoError(t, err)
		assert.Equal(t, "alice", out.Account)
		assert.Equal(t, "otpreset", out.Issuer)
		assert.Equal(t, 6, out.Digits)
		assert.Equal(t, 30, out.Period)
		assert.Equal(t, "SHA1", out.Algorithm)
		assert.Contains(t, out.URI, "otpauth://totp/")
		assert.Equal(t, h.delivery.last(t, "alice").Secret, out.Secret)

		enr, err := h.secrets.GetEnrollment(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", enr.Contact)
		assert.NotEqual(t, h.secretOf(t, "alice"), enr.Secret)
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.uc.Enroll(context.Background(), EnrollInput{Username: "carol", Email: "carol@example.com"})
		require.ErrorIs(t, err, entity.ErrAccountNotFound)
		assert.Zero(t, h.delivery.count("carol"))
	})

	t.Run("ContactInUse", func(t *testing.T) {
		h := newHarness(t)
		h.enroll(t, "alice")

		_, err := h.uc.Enroll(context.Background(), EnrollInput{Username: "bob", Email: "alice@example.com"})
		require.ErrorIs(t, err, entity.ErrContactInUse)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.uc.Enroll(context.Background(), EnrollInput{Username: "alice", Email: "not-an-email"})
		requireErrorType(t, err, goerror.TypeValidation, goerror.CodeInvalidInput)
	})

	t.Run("DeliveryFailureKeepsSecret", func(t *testing.T) {
		h := newHarness(t)
		h.delivery.err = errBoom

		_, err := h.uc.Enroll(context.Background(), EnrollInput{Username: "alice", Email: "alice@example.com"})
		require.ErrorIs(t, err, entity.ErrDeliveryFailure)
		require.ErrorIs(t, err, errBoom)

		_, err = h.secrets.GetEnrollment(context.Background(), "alice")
		require.NoError(t, err)

		h.verify(t, "alice", h.secretOf(t, "alice"))
	})

	t.Run("RateLimited", func(t *testing.T) {
		h := newHarness(t)

		for range 5 {
			h.enroll(t, "alice")
		}

		_, err := h.uc.Enroll(context.Background(), EnrollInput{Username: "alice", Email: "alice@example.com"})
		require.ErrorIs(t, err, entity.ErrRateLimited)
	})
}

func TestEnroll_ReplacesSecret(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	old := h.enroll(t, "alice")
	ref := h.verify(t, "alice", old)

	h.clock.Add(30 * time.Second)
	fresh := h.enroll(t, "alice")
	require.NotEqual(t, old, fresh)

	err := h.uc.CompleteReset(ctx, CompleteResetInput{SessionRef: ref, NewPassword: "new password 1"})
	require.ErrorIs(t, err, entity.ErrSessionNotFound)

	_, err = h.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", Code: h.wrongCode(t, fresh, h.clock.Now())})
	require.ErrorIs(t, err, entity.ErrInvalidCode)

	h.verify(t, "alice", fresh)
}

func TestEnroll_Idempotency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := EnrollInput{Username: "alice", Email: "alice@example.com", IdempotencyKey: "k-1"}

	_, err := h.uc.Enroll(ctx, in)
	require.NoError(t, err)

	_, err = h.uc.Enroll(ctx, in)
	requireErrorType(t, err, goerror.TypeBusiness, goerror.CodeConflict)
	assert.Equal(t, 1, h.delivery.count("alice"))

	in.IdempotencyKey = "k-2"
	_, err = h.uc.Enroll(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, h.delivery.count("alice"))
}

func TestResendProvisioning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	secret := h.enroll(t, "alice")
	require.NoError(t, h.uc.ResendProvisioning(ctx, ResendProvisioningInput{Username: "alice"}))

	assert.Equal(t, 2, h.delivery.count("alice"))
	assert.Equal(t, secret, h.secretOf(t, "alice"))
	assert.Equal(t, "alice@example.com", h.delivery.last(t, "alice").Contact)

	err := h.uc.ResendProvisioning(ctx, ResendProvisioningInput{Username: "dave"})
	require.ErrorIs(t, err, entity.ErrAccountNotFound)
}

func TestListEnrollments(t *testing.T) {
	h := newHarness(t)
	h.enroll(t, "bob")
	h.enroll(t, "alice")

	items, err := h.uc.ListEnrollments(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, EnrollmentItem{Account: "alice", Contact: "alice@example.com", KeyVersion: 1, EnrolledAt: base}, items[0])
	assert.Equal(t, "bob", items[1].Account)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, &HealthOutput{Status: HealthOK, Services: map[string]string{}}, h.uc.Health(context.Background()))

	h.pings["postgres"] = func(context.Context) error { return nil }
	h.pings["redis"] = func(context.Context) error { return errBoom }

	out := h.uc.Health(context.Background())
	assert.Equal(t, HealthDegraded, out.Status)
	assert.Equal(t, map[string]string{"postgres": HealthOK, "redis": HealthDown}, out.Services)
}
