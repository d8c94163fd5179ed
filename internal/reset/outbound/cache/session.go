package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

// SessionStore keeps one JSON session per account and an index from the
// session ref hash to the account, both with the same TTL.
type SessionStore struct {
	*Cache
}

func NewSessionStore(c *Cache) *SessionStore {
	return &SessionStore{Cache: c}
}

func sessionKey(account string) string {
	return prefix + "session:" + account
}

func sessionRefKey(refHash string) string {
	return prefix + "session-ref:" + refHash
}

func (s *SessionStore) GetSession(ctx context.Context, account string) (_ *entity.Session, err error) {
	ctx, span := s.startSpan(ctx, "GetSession")
	defer func() { s.endSpan(span, err) }()

	return s.get(ctx, account)
}

func (s *SessionStore) get(ctx context.Context, account string) (*entity.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(account)).Bytes()
	if err != nil {
		return nil, s.mapError(err)
	}

	var sess entity.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}

	return &sess, nil
}

func (s *SessionStore) GetSessionAccountByRef(ctx context.Context, refHash string) (_ string, err error) {
	ctx, span := s.startSpan(ctx, "GetSessionAccountByRef")
	defer func() { s.endSpan(span, err) }()

	account, err := s.client.Get(ctx, sessionRefKey(refHash)).Result()
	if err != nil {
		return "", s.mapError(err)
	}

	return account, nil
}

// SaveSession must be called under the account lock; it reads the replaced
// session to drop its ref index entry.
func (s *SessionStore) SaveSession(ctx context.Context, sess entity.Session, ttl time.Duration) (err error) {
	ctx, span := s.startSpan(ctx, "SaveSession")
	defer func() { s.endSpan(span, err) }()

	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	old, err := s.get(ctx, sess.Account)
	if errors.Is(err, goerror.ErrNotFound) {
		old, err = nil, nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if old != nil && old.RefHash != "" && old.RefHash != sess.RefHash {
			p.Del(ctx, sessionRefKey(old.RefHash))
		}
		p.Set(ctx, sessionKey(sess.Account), raw, ttl)
		if sess.RefHash != "" {
			p.Set(ctx, sessionRefKey(sess.RefHash), sess.Account, ttl)
		}
		return nil
	})
	return err
}

func (s *SessionStore) DeleteSessions(ctx context.Context, account string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteSessions")
	defer func() { s.endSpan(span, err) }()

	keys := []string{sessionKey(account)}

	old, err := s.get(ctx, account)
	switch {
	case err == nil && old.RefHash != "":
		keys = append(keys, sessionRefKey(old.RefHash))
	case err != nil && !errors.Is(err, goerror.ErrNotFound):
		return err
	}

	return s.client.Del(ctx, keys...).Err()
}
