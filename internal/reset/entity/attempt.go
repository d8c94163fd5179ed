package entity

import "time"

// Outcome is the result of a single verification attempt.
type Outcome string

const (
	OutcomeAccepted       Outcome = "accepted"
	OutcomeRejectedCode   Outcome = "rejected-code"
	OutcomeRejectedReplay Outcome = "rejected-replay"
	OutcomeRateLimited    Outcome = "rejected-rate-limited"
)

func (o Outcome) String() string {
	return string(o)
}

// Counted reports whether the outcome consumes the attempt budget. Attempts
// refused by the limiter are recorded but never extend the window.
func (o Outcome) Counted() bool {
	switch o {
	case OutcomeAccepted, OutcomeRejectedCode, OutcomeRejectedReplay:
		return true
	default:
		return false
	}
}

// Scope separates attempt budgets of the different operations.
type Scope string

const (
	ScopeVerify Scope = "verify"
	ScopeEnroll Scope = "enroll"
	ScopeResend Scope = "resend"
)

func (s Scope) String() string {
	return string(s)
}

// Attempt is an append-only ledger record.
type Attempt struct {
	Account string
	Scope   Scope
	Outcome Outcome
	At      time.Time
}

// LedgerPolicy configures a replay and rate ledger.
type LedgerPolicy struct {
	// Limit is the number of counted attempts allowed per account and scope
	// within Window.
	Limit  int
	Window time.Duration
	// ConsumeTTL is how long a consumed code window is remembered. It must
	// cover every window the validator still tolerates.
	ConsumeTTL time.Duration
}

// Limited reports whether count counted attempts exhaust the budget.
func (p LedgerPolicy) Limited(count int) bool {
	return count >= p.Limit
}
