package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

type VerifyOTPInput struct {
	Username string `validate:"required,username"`
	Code     string `validate:"required,numeric,len=6"`
}

type VerifyOTPOutput struct {
	SessionRef string
	ExpiresAt  time.Time
}

// VerifyOTP proves possession of the enrolled authenticator. On success the
// account's session moves to OtpVerified and an opaque session reference is
// returned for CompleteReset.
func (s *Usecase) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*VerifyOTPOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyOTP")
	defer span.End()

	in.Username = strings.TrimSpace(strings.ToLower(in.Username))
	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	unlock, err := s.lockAccount(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	defer unlock()

	enr, err := s.secrets.GetEnrollment(ctx, in.Username)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, entity.ErrAccountNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get enrollment", "account", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.accountExists(ctx, in.Username); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sess, err := s.awaitingSession(ctx, in.Username, now)
	if err != nil {
		return nil, err
	}

	if err := s.rateLimited(ctx, entity.ScopeVerify, in.Username, now); err != nil {
		return nil, err
	}

	secret, err := s.box.Open(enr.Secret, s.secretScope(in.Username))
	if err != nil {
		slog.ErrorContext(ctx, "failed to open totp secret", "account", in.Username, "key_version", enr.KeyVersion, "error", err)
		return nil, goerror.NewServer(err)
	}

	window, ok := s.totp.Check(secret, in.Code, now)
	if !ok {
		if err := s.record(ctx, entity.ScopeVerify, in.Username, entity.OutcomeRejectedCode, now); err != nil {
			return nil, err
		}
		return nil, entity.ErrInvalidCode
	}

	consumed, err := s.ledger.TryConsume(ctx, in.Username, window, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to consume code window", "account", in.Username, "window", window, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !consumed {
		if err := s.record(ctx, entity.ScopeVerify, in.Username, entity.OutcomeRejectedReplay, now); err != nil {
			return nil, err
		}
		return nil, entity.ErrAlreadyUsed
	}

	if err := s.record(ctx, entity.ScopeVerify, in.Username, entity.OutcomeAccepted, now); err != nil {
		return nil, err
	}

	ref := s.token.Generate()
	refHash, err := s.hmac.Hash(ref)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash session ref", "error", err)
		return nil, goerror.NewServer(err)
	}

	// A still verified session from an earlier code is replaced; its ref no
	// longer matches the stored session.
	if sess.State != entity.SessionStateAwaitingOtp {
		sess = entity.NewSession(s.uid.Generate(), in.Username, now, s.awaitTTL())
	}

	if err := sess.MarkVerified(now, s.verifiedTTL(), string(refHash), window); err != nil {
		return nil, err
	}

	if err := s.sessions.SaveSession(ctx, *sess, s.sessionTTL(sess, now)); err != nil {
		slog.ErrorContext(ctx, "failed to save verified session", "account", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "otp verified", "account", in.Username, "session_id", sess.ID)

	return &VerifyOTPOutput{SessionRef: ref, ExpiresAt: sess.ExpiresAt}, nil
}

// awaitingSession returns the account's live session, starting a new one in
// AwaitingOtp when there is none. Retired and expired sessions are replaced.
func (s *Usecase) awaitingSession(ctx context.Context, account string, now time.Time) (*entity.Session, error) {
	sess, err := s.sessions.GetSession(ctx, account)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to get reset session", "account", account, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err == nil && sess.Live(now) {
		return sess, nil
	}

	sess = entity.NewSession(s.uid.Generate(), account, now, s.awaitTTL())
	if err := s.sessions.SaveSession(ctx, *sess, s.sessionTTL(sess, now)); err != nil {
		slog.ErrorContext(ctx, "failed to save reset session", "account", account, "error", err)
		return nil, goerror.NewServer(err)
	}

	return sess, nil
}
