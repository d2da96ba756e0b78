package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables owned by this service.  otp_challenges is keyed
// by phone number so there is never more than one challenge per phone;
// profiles.phone_number is unique so registration races collapse into a
// duplicate-key error; quota_usage is append-only.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS otp_challenges (
		phone_number    CHAR(10)     NOT NULL,
		code_hash       VARCHAR(100) NOT NULL,
		created_at      DATETIME(6)  NOT NULL,
		expires_at      DATETIME(6)  NOT NULL,
		verified        TINYINT(1)   NOT NULL DEFAULT 0,
		failed_attempts INT          NOT NULL DEFAULT 0,
		verified_at     DATETIME(6)  NULL,
		consumed_at     DATETIME(6)  NULL,
		PRIMARY KEY (phone_number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		phone_number   CHAR(10)        NOT NULL,
		ration_card_no VARCHAR(50)     NOT NULL,
		card_type      ENUM('apl','bpl','aay','priority') NOT NULL,
		name           VARCHAR(100)    NOT NULL,
		address        VARCHAR(255)    NULL,
		family_members TINYINT UNSIGNED NOT NULL,
		created_at     DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at     DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		PRIMARY KEY (id),
		UNIQUE KEY uq_profiles_phone (phone_number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS profile_roles (
		profile_id BIGINT UNSIGNED NOT NULL,
		role       VARCHAR(32)     NOT NULL,
		PRIMARY KEY (profile_id, role),
		CONSTRAINT fk_roles_profile FOREIGN KEY (profile_id) REFERENCES profiles (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS quota_usage (
		id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		profile_id      BIGINT UNSIGNED NOT NULL,
		quantity_g      BIGINT          NOT NULL,
		status          ENUM('claimed','sold','converted') NOT NULL,
		claimed_at      DATETIME(6)     NOT NULL,
		delivery_method VARCHAR(32)     NOT NULL,
		PRIMARY KEY (id),
		KEY idx_quota_profile_time (profile_id, claimed_at),
		CONSTRAINT fk_quota_profile FOREIGN KEY (profile_id) REFERENCES profiles (id),
		CONSTRAINT chk_quota_positive CHECK (quantity_g > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates missing tables.  Existing tables are left untouched.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
