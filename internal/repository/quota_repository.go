package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ration-connect/internal/ledger"
	"github.com/iliyamo/ration-connect/internal/model"
)

// QuotaRepo reads and appends quota usage records.  Records are never
// updated or deleted; balances are always derived by aggregation.
type QuotaRepo struct {
	db *sql.DB
}

// NewQuotaRepo returns a new QuotaRepo bound to the provided database.
func NewQuotaRepo(db *sql.DB) *QuotaRepo { return &QuotaRepo{db: db} }

// GuardFunc decides whether a posting may proceed given the profile's
// family size and the usage already recorded in the month window.
type GuardFunc func(familyMembers int, used ledger.Breakdown) error

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func usageInWindow(ctx context.Context, q queryer, profileID uint64, from, to time.Time) (ledger.Breakdown, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT status, COALESCE(SUM(quantity_g), 0)
		 FROM quota_usage
		 WHERE profile_id = ? AND claimed_at >= ? AND claimed_at < ?
		 GROUP BY status`,
		profileID, from.UTC(), to.UTC())
	if err != nil {
		return ledger.Breakdown{}, err
	}
	defer rows.Close()

	var b ledger.Breakdown
	for rows.Next() {
		var (
			status string
			sum    int64
		)
		if err := rows.Scan(&status, &sum); err != nil {
			return ledger.Breakdown{}, err
		}
		switch status {
		case model.StatusClaimed:
			b.Claimed = model.Grams(sum)
		case model.StatusSold:
			b.Sold = model.Grams(sum)
		case model.StatusConverted:
			b.Converted = model.Grams(sum)
		}
	}
	return b, rows.Err()
}

// UsageInWindow sums the profile's records in [from, to) by status.
func (r *QuotaRepo) UsageInWindow(ctx context.Context, profileID uint64, from, to time.Time) (ledger.Breakdown, error) {
	return usageInWindow(ctx, r.db, profileID, from, to)
}

// ListInWindow returns the profile's records in [from, to), newest first.
func (r *QuotaRepo) ListInWindow(ctx context.Context, profileID uint64, from, to time.Time) ([]model.QuotaUsageRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, profile_id, quantity_g, status, claimed_at, delivery_method
		 FROM quota_usage
		 WHERE profile_id = ? AND claimed_at >= ? AND claimed_at < ?
		 ORDER BY claimed_at DESC, id DESC`,
		profileID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.QuotaUsageRecord, 0, 8)
	for rows.Next() {
		var rec model.QuotaUsageRecord
		if err := rows.Scan(&rec.ID, &rec.ProfileID, &rec.Quantity, &rec.Status, &rec.ClaimedAt, &rec.DeliveryMethod); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendGuarded inserts rec after guard accepts the current usage.  The
// profile row is locked FOR UPDATE so concurrent postings for the same
// profile are serialised and the aggregate the guard sees cannot change
// before the insert commits.  A guard error aborts the transaction and
// is returned unchanged.  ErrNotFound means the profile does not exist.
func (r *QuotaRepo) AppendGuarded(ctx context.Context, rec *model.QuotaUsageRecord, from, to time.Time, guard GuardFunc) error {
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

	var familyMembers int
	err = tx.QueryRowContext(ctx,
		`SELECT family_members FROM profiles WHERE id = ? FOR UPDATE`, rec.ProfileID).Scan(&familyMembers)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	used, err := usageInWindow(ctx, tx, rec.ProfileID, from, to)
	if err != nil {
		return err
	}
	if guard != nil {
		if err := guard(familyMembers, used); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO quota_usage (profile_id, quantity_g, status, claimed_at, delivery_method)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ProfileID, int64(rec.Quantity), rec.Status, rec.ClaimedAt.UTC(), rec.DeliveryMethod)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	rec.ID = uint64(id)
	return nil
}
