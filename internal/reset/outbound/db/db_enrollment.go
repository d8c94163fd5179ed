package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
)

const enrollmentColumns = `account, contact, secret, key_version, digits, period, algorithm, enrolled_at`

func scanEnrollment(row pgx.Row) (*entity.Enrollment, error) {
	var (
		e                  entity.Enrollment
		keyVersion         int16
		digits, periodSecs int16
	)

	err := row.Scan(&e.Account, &e.Contact, &e.Secret, &keyVersion, &digits, &periodSecs, &e.Algorithm, &e.EnrolledAt)
	if err != nil {
		return nil, err
	}

	e.KeyVersion = uint16(keyVersion)
	e.Digits = int(digits)
	e.Period = int(periodSecs)
	return &e, nil
}

func (s *DB) GetEnrollment(ctx context.Context, account string) (_ *entity.Enrollment, err error) {
	ctx, span := s.startSpan(ctx, "GetEnrollment")
	defer func() { s.endSpan(span, err) }()

	e, err := scanEnrollment(s.conn.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM reset_enrollments WHERE account = $1`, account))
	if err != nil {
		return nil, s.mapError(err)
	}

	return e, nil
}

func (s *DB) GetEnrollmentByContact(ctx context.Context, contact string) (_ *entity.Enrollment, err error) {
	ctx, span := s.startSpan(ctx, "GetEnrollmentByContact")
	defer func() { s.endSpan(span, err) }()

	e, err := scanEnrollment(s.conn.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM reset_enrollments WHERE contact = $1`, contact))
	if err != nil {
		return nil, s.mapError(err)
	}

	return e, nil
}

func (s *DB) ListEnrollments(ctx context.Context) (_ []entity.Enrollment, err error) {
	ctx, span := s.startSpan(ctx, "ListEnrollments")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`SELECT account, contact, ''::bytea, key_version, digits, period, algorithm, enrolled_at
		FROM reset_enrollments ORDER BY account`)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var out []entity.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		e.Secret = nil
		out = append(out, *e)
	}

	return out, s.mapError(rows.Err())
}

// UpsertEnrollment replaces the account's enrollment. A contact already bound
// to another account violates the unique index and maps to ErrConflict.
func (s *DB) UpsertEnrollment(ctx context.Context, in entity.Enrollment) (err error) {
	ctx, span := s.startSpan(ctx, "UpsertEnrollment")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO reset_enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account) DO UPDATE SET
			contact     = EXCLUDED.contact,
			secret      = EXCLUDED.secret,
			key_version = EXCLUDED.key_version,
			digits      = EXCLUDED.digits,
			period      = EXCLUDED.period,
			algorithm   = EXCLUDED.algorithm,
			enrolled_at = EXCLUDED.enrolled_at`,
		in.Account, in.Contact, in.Secret, int16(in.KeyVersion), int16(in.Digits), int16(in.Period), in.Algorithm, in.EnrolledAt,
	)
	return s.mapError(err)
}
