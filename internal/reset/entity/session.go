package entity

import "time"

type SessionState int16

const (
	SessionStateUnknown     SessionState = 0
	SessionStateAwaitingOtp SessionState = 1
	SessionStateOtpVerified SessionState = 2
	SessionStateCompleted   SessionState = 3
	SessionStateExpired     SessionState = 4
)

func (s SessionState) String() string {
	switch s {
	case SessionStateAwaitingOtp:
		return "AwaitingOtp"
	case SessionStateOtpVerified:
		return "OtpVerified"
	case SessionStateCompleted:
		return "Completed"
	case SessionStateExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// Session is the two-step reset state of one account. Every transition is
// made by a method below; callers hold the account lock while calling them.
type Session struct {
	ID          int64        `json:"id"`
	Account     string       `json:"account"`
	RefHash     string       `json:"ref_hash,omitempty"`
	State       SessionState `json:"state"`
	WindowID    int64        `json:"window_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	VerifiedAt  time.Time    `json:"verified_at,omitzero"`
	CompletedAt time.Time    `json:"completed_at,omitzero"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// NewSession starts a session in AwaitingOtp.
func NewSession(id int64, account string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		Account:   account,
		State:     SessionStateAwaitingOtp,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Live reports whether the session still accepts operations at now.
func (s *Session) Live(now time.Time) bool {
	s.Expire(now)
	return s.State == SessionStateAwaitingOtp || s.State == SessionStateOtpVerified
}

// Expire moves a live session past its deadline to Expired and reports
// whether the session is expired. Completed is terminal and never expires.
func (s *Session) Expire(now time.Time) bool {
	switch s.State {
	case SessionStateAwaitingOtp, SessionStateOtpVerified:
		if now.After(s.ExpiresAt) {
			s.State = SessionStateExpired
		}
	}
	return s.State == SessionStateExpired
}

// MarkVerified records an accepted code. It is allowed once, from AwaitingOtp.
func (s *Session) MarkVerified(now time.Time, ttl time.Duration, refHash string, window int64) error {
	if s.Expire(now) {
		return ErrSessionExpired
	}

	switch s.State {
	case SessionStateAwaitingOtp:
	case SessionStateCompleted:
		return ErrSessionCompleted
	default:
		return ErrAlreadyUsed
	}

	s.State = SessionStateOtpVerified
	s.RefHash = refHash
	s.WindowID = window
	s.VerifiedAt = now
	s.ExpiresAt = now.Add(ttl)
	return nil
}

// CanComplete reports whether a new password may be applied at now.
func (s *Session) CanComplete(now time.Time) error {
	s.Expire(now)

	switch s.State {
	case SessionStateOtpVerified:
		return nil
	case SessionStateExpired:
		return ErrSessionExpired
	case SessionStateCompleted:
		return ErrSessionCompleted
	default:
		return ErrSessionNotVerified
	}
}

// MarkCompleted retires the session. The completed session is kept as a
// tombstone until now+retention so a second submission is refused.
func (s *Session) MarkCompleted(now time.Time, retention time.Duration) error {
	if err := s.CanComplete(now); err != nil {
		return err
	}

	s.State = SessionStateCompleted
	s.CompletedAt = now
	s.ExpiresAt = now.Add(retention)
	return nil
}
