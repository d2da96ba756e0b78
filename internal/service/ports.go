// Package service implements the OTP state machine, the registration gate
// and the quota ledger on top of the repositories.  Every store is an
// interface so the rules can be exercised without MySQL.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/ration-connect/internal/ledger"
	"github.com/iliyamo/ration-connect/internal/logger"
	"github.com/iliyamo/ration-connect/internal/model"
	"github.com/iliyamo/ration-connect/internal/queue"
	"github.com/iliyamo/ration-connect/internal/repository"
	"github.com/iliyamo/ration-connect/internal/utils"
)

// ChallengeStore persists OTP challenges, one per phone number.
type ChallengeStore interface {
	Upsert(ctx context.Context, c model.OTPChallenge) error
	GetUnverified(ctx context.Context, phone string) (model.OTPChallenge, error)
	RecordFailedAttempt(ctx context.Context, phone, codeHash string) error
	MarkVerified(ctx context.Context, phone, codeHash string, now time.Time) (bool, error)
}

// ProfileStore reads and writes profiles.
type ProfileStore interface {
	GetByPhone(ctx context.Context, phone string) (model.Profile, error)
	GetByID(ctx context.Context, id uint64) (model.Profile, error)
	CreateWithVerifiedChallenge(ctx context.Context, p *model.Profile, now time.Time) error
	Update(ctx context.Context, id uint64, u model.ProfileUpdate) (model.Profile, error)
}

// RoleStore reads and grants profile roles.
type RoleStore interface {
	RolesFor(ctx context.Context, profileID uint64) ([]string, error)
	Grant(ctx context.Context, profileID uint64, role string) error
}

// QuotaStore reads and appends usage records.
type QuotaStore interface {
	UsageInWindow(ctx context.Context, profileID uint64, from, to time.Time) (ledger.Breakdown, error)
	ListInWindow(ctx context.Context, profileID uint64, from, to time.Time) ([]model.QuotaUsageRecord, error)
	AppendGuarded(ctx context.Context, rec *model.QuotaUsageRecord, from, to time.Time, guard repository.GuardFunc) error
}

// SendLimiter throttles OTP sends.  A positive duration refuses the send.
type SendLimiter interface {
	Allow(ctx context.Context, phone string) (time.Duration, error)
}

// EventPublisher emits ledger events.  Publishing is best effort.
type EventPublisher interface {
	ProfileRegistered(ctx context.Context, ev queue.ProfileRegisteredEvent) error
	QuotaRecorded(ctx context.Context, ev queue.QuotaRecordedEvent) error
}

// SessionIssuer signs session tokens.
type SessionIssuer struct {
	Secret string
	TTL    time.Duration
}

// Issue signs a session for profileID valid from now.
func (s SessionIssuer) Issue(profileID uint64, roles []string, now time.Time) (utils.SessionToken, error) {
	return utils.NewSessionToken(s.Secret, profileID, roles, s.TTL, now)
}

const publishTimeout = 10 * time.Second

// publishAsync runs fn off the request path.  Failures are only logged:
// the database already holds the committed state.
func publishAsync(log *slog.Logger, typ string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warn("publish event failed", slog.String("type", typ), logger.Err(err))
		}
	}()
}

// rolesOrDefault loads the roles of a profile, falling back to citizen
// when the lookup fails so a role read never blocks a login.
func rolesOrDefault(ctx context.Context, roles RoleStore, log *slog.Logger, profileID uint64) []string {
	if roles == nil {
		return []string{model.RoleCitizen}
	}
	rs, err := roles.RolesFor(ctx, profileID)
	if err != nil || len(rs) == 0 {
		if err != nil {
			log.Warn("load roles failed", slog.Uint64("profile_id", profileID), logger.Err(err))
		}
		return []string{model.RoleCitizen}
	}
	return rs
}
