package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ration-connect/internal/model"
)

// ProfileRepo manages the profiles table.  Profiles are only inserted
// through CreateWithVerifiedChallenge.
type ProfileRepo struct {
	db *sql.DB
}

// NewProfileRepo returns a new ProfileRepo bound to the provided database.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

const profileColumns = `id, phone_number, ration_card_no, card_type, name, address, family_members, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var (
		p       model.Profile
		address sql.NullString
	)
	err := row.Scan(&p.ID, &p.PhoneNumber, &p.RationCardNo, &p.CardType, &p.Name, &address, &p.FamilyMembers, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, err
	}
	if address.Valid {
		a := address.String
		p.Address = &a
	}
	return p, nil
}

// GetByPhone fetches the profile registered for phone.
func (r *ProfileRepo) GetByPhone(ctx context.Context, phone string) (model.Profile, error) {
	return scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE phone_number = ? LIMIT 1`, phone))
}

// GetByID fetches a profile by id.
func (r *ProfileRepo) GetByID(ctx context.Context, id uint64) (model.Profile, error) {
	return scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ? LIMIT 1`, id))
}

// CreateWithVerifiedChallenge inserts p and consumes the verified OTP
// challenge of p.PhoneNumber in one transaction.  The challenge row is
// locked first so concurrent registrations for the same phone serialise:
// the winner inserts and consumes, the loser then finds the challenge
// consumed and gets ErrDuplicate.  A missing, unverified or expired
// challenge yields ErrChallengeNotVerified.  On success the generated
// id and timestamps are populated on p.
func (r *ProfileRepo) CreateWithVerifiedChallenge(ctx context.Context, p *model.Profile, now time.Time) error {
	now = now.UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		verified   bool
		expiresAt  time.Time
		consumedAt sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		`SELECT verified, expires_at, consumed_at FROM otp_challenges WHERE phone_number = ? FOR UPDATE`,
		p.PhoneNumber).Scan(&verified, &expiresAt, &consumedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrChallengeNotVerified
	}
	if err != nil {
		return err
	}
	if !verified || now.After(expiresAt) {
		return ErrChallengeNotVerified
	}
	// Consumed inside the live window means a registration already won.
	if consumedAt.Valid {
		return ErrDuplicate
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO profiles (phone_number, ration_card_no, card_type, name, address, family_members, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PhoneNumber, p.RationCardNo, p.CardType, p.Name, nullableString(p.Address), p.FamilyMembers, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE otp_challenges SET consumed_at = ? WHERE phone_number = ?`, now, p.PhoneNumber); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	p.ID = uint64(id)
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Update applies the owner-editable fields of u and returns the fresh row.
// An update with no fields set simply returns the current profile.
func (r *ProfileRepo) Update(ctx context.Context, id uint64, u model.ProfileUpdate) (model.Profile, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Address != nil {
		sets = append(sets, "address = ?")
		args = append(args, nullableString(u.Address))
	}
	if u.CardType != nil {
		sets = append(sets, "card_type = ?")
		args = append(args, *u.CardType)
	}
	if len(sets) > 0 {
		args = append(args, id)
		res, err := r.db.ExecContext(ctx, `UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return model.Profile{}, err
		}
		// MySQL reports 0 rows for an unchanged row, so existence is
		// decided by the read below.
		_, _ = res.RowsAffected()
	}
	return r.GetByID(ctx, id)
}

// nullableString stores empty or nil strings as NULL.
func nullableString(s *string) any {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return *s
}
