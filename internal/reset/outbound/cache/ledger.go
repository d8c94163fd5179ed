package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

// Members of an attempt set are "<outcome>:<unix nano>:<nonce>" scored by
// unix milliseconds. The script prunes the set to the window and counts the
// members whose outcome is listed in ARGV[3..].
var countScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local members = redis.call('ZRANGEBYSCORE', KEYS[1], '(' .. ARGV[1], ARGV[2])
local counted = {}
for i = 3, #ARGV do counted[ARGV[i]] = true end
local n = 0
for _, m in ipairs(members) do
  local outcome = string.match(m, '^([^:]+):')
  if outcome and counted[outcome] then n = n + 1 end
end
return n
`)

var countedOutcomes = []any{
	string(entity.OutcomeAccepted),
	string(entity.OutcomeRejectedCode),
	string(entity.OutcomeRejectedReplay),
}

// Ledger is a redis replay and rate ledger.
type Ledger struct {
	*Cache
	policy entity.LedgerPolicy
}

func NewLedger(c *Cache, policy entity.LedgerPolicy) *Ledger {
	return &Ledger{Cache: c, policy: policy}
}

func attemptsKey(scope entity.Scope, account string) string {
	return prefix + "attempts:" + string(scope) + ":" + account
}

func consumedKey(account string, window int64) string {
	return prefix + "consumed:" + account + ":" + strconv.FormatInt(window, 10)
}

func (l *Ledger) RecordAttempt(ctx context.Context, at entity.Attempt) (err error) {
	ctx, span := l.startSpan(ctx, "RecordAttempt")
	defer func() { l.endSpan(span, err) }()

	nonce := make([]byte, 4)
	if _, err = rand.Read(nonce); err != nil {
		return err
	}

	key := attemptsKey(at.Scope, at.Account)
	member := fmt.Sprintf("%s:%d:%s", at.Outcome, at.At.UnixNano(), hex.EncodeToString(nonce))

	_, err = l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: float64(at.At.UnixMilli()), Member: member})
		p.PExpire(ctx, key, l.policy.Window)
		return nil
	})
	return err
}

func (l *Ledger) IsRateLimited(ctx context.Context, scope entity.Scope, account string, now time.Time) (_ bool, err error) {
	ctx, span := l.startSpan(ctx, "IsRateLimited")
	defer func() { l.endSpan(span, err) }()

	cutoff := now.Add(-l.policy.Window).UnixMilli()
	args := append([]any{cutoff, now.UnixMilli()}, countedOutcomes...)

	count, err := countScript.Run(ctx, l.client, []string{attemptsKey(scope, account)}, args...).Int()
	if err != nil {
		return false, err
	}

	return l.policy.Limited(count), nil
}

// TryConsume marks (account, window) consumed with SET NX, which redis
// executes atomically for concurrent callers.
func (l *Ledger) TryConsume(ctx context.Context, account string, window int64, now time.Time) (_ bool, err error) {
	ctx, span := l.startSpan(ctx, "TryConsume")
	defer func() { l.endSpan(span, err) }()

	return l.client.SetNX(ctx, consumedKey(account, window), now.UnixMilli(), l.policy.ConsumeTTL).Result()
}
