package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ration-connect/internal/model"
)

// OTPRepo persists OTP challenges.  The table holds one row per phone
// number; every method is a single statement so no explicit transaction
// is required.
type OTPRepo struct {
	db *sql.DB
}

// NewOTPRepo returns a new OTPRepo bound to the provided database.
func NewOTPRepo(db *sql.DB) *OTPRepo { return &OTPRepo{db: db} }

// Upsert stores c as the only challenge for its phone number, resetting
// the verification, attempt and consumption state of any previous row.
// Concurrent upserts for the same phone leave exactly one row (last
// writer wins).
func (r *OTPRepo) Upsert(ctx context.Context, c model.OTPChallenge) error {
	const q = `INSERT INTO otp_challenges
	               (phone_number, code_hash, created_at, expires_at, verified, failed_attempts, verified_at, consumed_at)
	           VALUES (?, ?, ?, ?, 0, 0, NULL, NULL)
	           ON DUPLICATE KEY UPDATE
	               code_hash = VALUES(code_hash),
	               created_at = VALUES(created_at),
	               expires_at = VALUES(expires_at),
	               verified = 0,
	               failed_attempts = 0,
	               verified_at = NULL,
	               consumed_at = NULL`
	_, err := r.db.ExecContext(ctx, q, c.PhoneNumber, c.CodeHash, c.CreatedAt.UTC(), c.ExpiresAt.UTC())
	return err
}

// GetUnverified returns the challenge for phone if it has not been
// verified yet.  ErrNotFound means there is nothing left to verify.
func (r *OTPRepo) GetUnverified(ctx context.Context, phone string) (model.OTPChallenge, error) {
	const q = `SELECT phone_number, code_hash, created_at, expires_at, verified, failed_attempts, verified_at, consumed_at
	           FROM otp_challenges
	           WHERE phone_number = ? AND verified = 0`
	var (
		c          model.OTPChallenge
		verifiedAt sql.NullTime
		consumedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, phone).Scan(
		&c.PhoneNumber, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &c.Verified, &c.FailedAttempts, &verifiedAt, &consumedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OTPChallenge{}, ErrNotFound
	}
	if err != nil {
		return model.OTPChallenge{}, err
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		c.VerifiedAt = &t
	}
	if consumedAt.Valid {
		t := consumedAt.Time
		c.ConsumedAt = &t
	}
	return c, nil
}

// RecordFailedAttempt bumps the wrong-code counter of the challenge
// identified by phone and codeHash.  A superseded challenge is left alone.
func (r *OTPRepo) RecordFailedAttempt(ctx context.Context, phone, codeHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET failed_attempts = failed_attempts + 1
		 WHERE phone_number = ? AND code_hash = ? AND verified = 0`,
		phone, codeHash)
	return err
}

// MarkVerified flips the challenge to verified with a single conditional
// update.  It reports false when the row no longer matches: already
// verified by a concurrent request, superseded by a new issue, or expired.
func (r *OTPRepo) MarkVerified(ctx context.Context, phone, codeHash string, now time.Time) (bool, error) {
	now = now.UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET verified = 1, verified_at = ?
		 WHERE phone_number = ? AND code_hash = ? AND verified = 0 AND expires_at >= ?`,
		now, phone, codeHash, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
