package db

import (
	"context"
	"fmt"

	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/pkg/hash"
)

// Exists reports whether an enabled account row exists. It implements the
// account directory on the reset_accounts table.
func (s *DB) Exists(ctx context.Context, account string) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "Exists")
	defer func() { s.endSpan(span, err) }()

	var ok bool
	err = s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reset_accounts WHERE username = $1 AND NOT disabled)`, account,
	).Scan(&ok)
	if err != nil {
		return false, s.mapError(err)
	}

	return ok, nil
}

// CredentialApplier stores a hash of the new password in reset_accounts.
type CredentialApplier struct {
	*DB
	hasher hash.Hash
}

func NewCredentialApplier(db *DB, hasher hash.Hash) *CredentialApplier {
	return &CredentialApplier{DB: db, hasher: hasher}
}

func (a *CredentialApplier) Apply(ctx context.Context, account, newPassword string) (err error) {
	ctx, span := a.startSpan(ctx, "Apply")
	defer func() { a.endSpan(span, err) }()

	hashed, err := a.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	tag, err := a.conn.Exec(ctx,
		`UPDATE reset_accounts SET password_hash = $2, updated_at = now() WHERE username = $1 AND NOT disabled`,
		account, string(hashed),
	)
	if err != nil {
		return a.mapError(err)
	}

	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}
