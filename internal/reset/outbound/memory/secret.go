package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

// SecretStore keeps enrollments keyed by account with a contact index.
type SecretStore struct {
	mu        sync.RWMutex
	byAccount map[string]entity.Enrollment
	byContact map[string]string
}

func NewSecretStore() *SecretStore {
	return &SecretStore{
		byAccount: make(map[string]entity.Enrollment),
		byContact: make(map[string]string),
	}
}

func (s *SecretStore) GetEnrollment(_ context.Context, account string) (*entity.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byAccount[account]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	e.Secret = slices.Clone(e.Secret)
	return &e, nil
}

func (s *SecretStore) GetEnrollmentByContact(ctx context.Context, contact string) (*entity.Enrollment, error) {
	s.mu.RLock()
	account, ok := s.byContact[contact]
	s.mu.RUnlock()

	if !ok {
		return nil, goerror.ErrNotFound
	}

	return s.GetEnrollment(ctx, account)
}

func (s *SecretStore) ListEnrollments(context.Context) ([]entity.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Enrollment, 0, len(s.byAccount))
	for _, e := range s.byAccount {
		e.Secret = nil
		out = append(out, e)
	}

	slices.SortFunc(out, func(a, b entity.Enrollment) int {
		return strings.Compare(a.Account, b.Account)
	})

	return out, nil
}

// UpsertEnrollment replaces the account's enrollment. A contact bound to a
// different account is a conflict.
func (s *SecretStore) UpsertEnrollment(_ context.Context, in entity.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byContact[in.Contact]; ok && owner != in.Account {
		return goerror.ErrConflict
	}

	if old, ok := s.byAccount[in.Account]; ok {
		delete(s.byContact, old.Contact)
	}

	in.Secret = slices.Clone(in.Secret)
	if in.EnrolledAt.IsZero() {
		in.EnrolledAt = time.Now()
	}

	s.byAccount[in.Account] = in
	s.byContact[in.Contact] = in.Account
	return nil
}
