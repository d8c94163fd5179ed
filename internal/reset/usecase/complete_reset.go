package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

const minPasswordLength = 8

// DefaultMaxPasswordBytes matches the bcrypt input limit.
const DefaultMaxPasswordBytes = 72

type CompleteResetInput struct {
	SessionRef      string `validate:"required,max=128"`
	NewPassword     string `validate:"required,password"`
	ConfirmPassword string `validate:"omitempty,eqfield=NewPassword"`
}

// CompleteReset applies a new password through the credential applier for a
// verified session and retires the session. A failing applier leaves the
// session verified so the caller can retry until it expires.
func (s *Usecase) CompleteReset(ctx context.Context, in CompleteResetInput) error {
	ctx, span := s.startSpan(ctx, "CompleteReset")
	defer span.End()

	in.SessionRef = strings.TrimSpace(in.SessionRef)

	if utf8.RuneCountInString(in.NewPassword) < minPasswordLength || len(in.NewPassword) > s.maxPasswordBytes {
		return entity.ErrWeakPassword
	}

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	refHash, err := s.hmac.Hash(in.SessionRef)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash session ref", "error", err)
		return goerror.NewServer(err)
	}

	account, err := s.sessions.GetSessionAccountByRef(ctx, string(refHash))
	if errors.Is(err, goerror.ErrNotFound) {
		return entity.ErrSessionNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get reset session by ref", "error", err)
		return goerror.NewServer(err)
	}

	unlock, err := s.lockAccount(ctx, account)
	if err != nil {
		return err
	}
	defer unlock()

	sess, err := s.sessions.GetSession(ctx, account)
	if errors.Is(err, goerror.ErrNotFound) {
		return entity.ErrSessionNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get reset session", "account", account, "error", err)
		return goerror.NewServer(err)
	}

	if subtle.ConstantTimeCompare([]byte(sess.RefHash), refHash) != 1 {
		return entity.ErrSessionNotFound
	}

	now := s.clock.Now()
	if err := sess.CanComplete(now); err != nil {
		if errors.Is(err, entity.ErrSessionExpired) {
			if derr := s.sessions.DeleteSessions(ctx, account); derr != nil {
				slog.WarnContext(ctx, "failed to discard expired session", "account", account, "error", derr)
			}
		}
		return err
	}

	actx, cancel := s.boundaryContext(ctx)
	err = s.applier.Apply(actx, account, in.NewPassword)
	cancel()
	if err != nil {
		slog.ErrorContext(ctx, "failed to apply new password", "account", account, "session_id", sess.ID, "error", err)
		return entity.ErrApplierFailure.Wrap(err)
	}

	if err := sess.MarkCompleted(now, s.retention()); err != nil {
		return err
	}

	if err := s.sessions.SaveSession(ctx, *sess, s.sessionTTL(sess, now)); err != nil {
		slog.ErrorContext(ctx, "failed to retire completed session", "account", account, "session_id", sess.ID, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "password reset completed", "account", account, "session_id", sess.ID)

	return nil
}
