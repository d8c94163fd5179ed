package memory

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

// Ledger is an in-process replay and rate ledger. One mutex guards all
// state, so TryConsume is linearizable.
type Ledger struct {
	policy entity.LedgerPolicy

	mu       sync.Mutex
	attempts map[string][]entity.Attempt
	consumed map[string]time.Time
}

func NewLedger(policy entity.LedgerPolicy) *Ledger {
	return &Ledger{
		policy:   policy,
		attempts: make(map[string][]entity.Attempt),
		consumed: make(map[string]time.Time),
	}
}

func attemptKey(scope entity.Scope, account string) string {
	return string(scope) + "\x00" + account
}

func consumeKey(account string, window int64) string {
	return account + "\x00" + strconv.FormatInt(window, 10)
}

func (l *Ledger) RecordAttempt(_ context.Context, at entity.Attempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := attemptKey(at.Scope, at.Account)
	l.attempts[k] = append(l.prune(l.attempts[k], at.At), at)
	return nil
}

func (l *Ledger) IsRateLimited(_ context.Context, scope entity.Scope, account string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := attemptKey(scope, account)
	live := l.prune(l.attempts[k], now)
	if len(live) == 0 {
		delete(l.attempts, k)
	} else {
		l.attempts[k] = live
	}

	count := 0
	for _, a := range live {
		if a.Outcome.Counted() && !a.At.After(now) {
			count++
		}
	}

	return l.policy.Limited(count), nil
}

func (l *Ledger) TryConsume(_ context.Context, account string, window int64, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := consumeKey(account, window)
	if until, ok := l.consumed[k]; ok && now.Before(until) {
		return false, nil
	}

	l.consumed[k] = now.Add(l.policy.ConsumeTTL)
	return true, nil
}

// Sweep drops attempts outside the window and consumed windows past their
// retention.
func (l *Ledger) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for k, list := range l.attempts {
		live := l.prune(list, now)
		n += len(list) - len(live)
		if len(live) == 0 {
			delete(l.attempts, k)
			continue
		}
		l.attempts[k] = live
	}

	for k, until := range l.consumed {
		if !now.Before(until) {
			delete(l.consumed, k)
			n++
		}
	}

	return n
}

// prune drops the leading attempts that fell out of the window ending at now.
// Attempts are appended in time order.
func (l *Ledger) prune(list []entity.Attempt, now time.Time) []entity.Attempt {
	cutoff := now.Add(-l.policy.Window)
	i := 0
	for i < len(list) && !list[i].At.After(cutoff) {
		i++
	}
	return list[i:]
}

// Attempts returns a copy of the recorded attempts of account in scope,
// including the ones that already fell out of the window but were not pruned.
func (l *Ledger) Attempts(scope entity.Scope, account string) []entity.Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.attempts[attemptKey(scope, account)])
}
