package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

type sessionEntry struct {
	sess  entity.Session
	until time.Time
}

type refEntry struct {
	account string
	until   time.Time
}

// SessionStore keeps at most one session per account plus an index from the
// session ref hash to the account.
type SessionStore struct {
	now func() time.Time

	mu        sync.Mutex
	byAccount map[string]sessionEntry
	byRef     map[string]refEntry
}

func NewSessionStore(now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}

	return &SessionStore{
		now:       now,
		byAccount: make(map[string]sessionEntry),
		byRef:     make(map[string]refEntry),
	}
}

func (s *SessionStore) GetSession(_ context.Context, account string) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byAccount[account]
	if !ok || !s.now().Before(e.until) {
		return nil, goerror.ErrNotFound
	}

	sess := e.sess
	return &sess, nil
}

func (s *SessionStore) GetSessionAccountByRef(_ context.Context, refHash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byRef[refHash]
	if !ok || !s.now().Before(e.until) {
		return "", goerror.ErrNotFound
	}

	return e.account, nil
}

// SaveSession stores sess as the account's only session for ttl. An index
// entry of a replaced session is dropped.
func (s *SessionStore) SaveSession(_ context.Context, sess entity.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	until := s.now().Add(ttl)
	if old, ok := s.byAccount[sess.Account]; ok && old.sess.RefHash != "" && old.sess.RefHash != sess.RefHash {
		delete(s.byRef, old.sess.RefHash)
	}

	s.byAccount[sess.Account] = sessionEntry{sess: sess, until: until}
	if sess.RefHash != "" {
		s.byRef[sess.RefHash] = refEntry{account: sess.Account, until: until}
	}

	return nil
}

func (s *SessionStore) DeleteSessions(_ context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byAccount[account]; ok && old.sess.RefHash != "" {
		delete(s.byRef, old.sess.RefHash)
	}
	delete(s.byAccount, account)

	return nil
}

func (s *SessionStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.byAccount {
		if !now.Before(e.until) {
			delete(s.byAccount, k)
			n++
		}
	}
	for k, e := range s.byRef {
		if !now.Before(e.until) {
			delete(s.byRef, k)
		}
	}

	return n
}

// Len returns the number of stored sessions, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byAccount)
}
