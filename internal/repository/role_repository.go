package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/ration-connect/internal/model"
)

// RoleRepo reads and grants profile roles.
type RoleRepo struct {
	db *sql.DB
}

// NewRoleRepo returns a new RoleRepo bound to the provided database.
func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

// RolesFor returns the roles of a profile.  Citizen is implied and always
// listed first.
func (r *RoleRepo) RolesFor(ctx context.Context, profileID uint64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role FROM profile_roles WHERE profile_id = ? ORDER BY role`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []string{model.RoleCitizen}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		if role != model.RoleCitizen {
			roles = append(roles, role)
		}
	}
	return roles, rows.Err()
}

// Grant adds role to the profile.  Granting an existing role is a no-op;
// ErrNotFound means the profile does not exist.
func (r *RoleRepo) Grant(ctx context.Context, profileID uint64, role string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = ?`, profileID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT IGNORE INTO profile_roles (profile_id, role) VALUES (?, ?)`, profileID, role)
	return err
}
