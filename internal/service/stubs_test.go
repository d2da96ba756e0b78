package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/ration-connect/internal/config"
	"github.com/iliyamo/ration-connect/internal/ledger"
	"github.com/iliyamo/ration-connect/internal/logger"
	"github.com/iliyamo/ration-connect/internal/model"
	"github.com/iliyamo/ration-connect/internal/queue"
	"github.com/iliyamo/ration-connect/internal/repository"
)

// memStore is an in-memory stand-in for the MySQL repositories.  A single
// mutex gives every method the atomicity the SQL statements provide.
type memStore struct {
	mu         sync.Mutex
	challenges map[string]model.OTPChallenge
	profiles   map[uint64]model.Profile
	byPhone    map[string]uint64
	roles      map[uint64][]string
	usage      []model.QuotaUsageRecord
	nextID     uint64

	upsertErr error
	usageErr  error
}

func newMemStore() *memStore {
	return &memStore{
		challenges: map[string]model.OTPChallenge{},
		profiles:   map[uint64]model.Profile{},
		byPhone:    map[string]uint64{},
		roles:      map[uint64][]string{},
	}
}

func (m *memStore) Upsert(ctx context.Context, c model.OTPChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	c.Verified, c.FailedAttempts, c.VerifiedAt, c.ConsumedAt = false, 0, nil, nil
	m.challenges[c.PhoneNumber] = c
	return nil
}

func (m *memStore) GetUnverified(ctx context.Context, phone string) (model.OTPChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[phone]
	if !ok || c.Verified {
		return model.OTPChallenge{}, repository.ErrNotFound
	}
	return c, nil
}

func (m *memStore) RecordFailedAttempt(ctx context.Context, phone, codeHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[phone]
	if ok && !c.Verified && c.CodeHash == codeHash {
		c.FailedAttempts++
		m.challenges[phone] = c
	}
	return nil
}

func (m *memStore) MarkVerified(ctx context.Context, phone, codeHash string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[phone]
	if !ok || c.Verified || c.CodeHash != codeHash || now.After(c.ExpiresAt) {
		return false, nil
	}
	c.Verified = true
	c.VerifiedAt = &now
	m.challenges[phone] = c
	return true, nil
}

func (m *memStore) challenge(phone string) (model.OTPChallenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[phone]
	return c, ok
}

func (m *memStore) GetByPhone(ctx context.Context, phone string) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPhone[phone]
	if !ok {
		return model.Profile{}, repository.ErrNotFound
	}
	return m.profiles[id], nil
}

func (m *memStore) GetByID(ctx context.Context, id uint64) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return model.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

func (m *memStore) CreateWithVerifiedChallenge(ctx context.Context, p *model.Profile, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[p.PhoneNumber]
	if !ok || !c.Verified || now.After(c.ExpiresAt) {
		return repository.ErrChallengeNotVerified
	}
	if c.ConsumedAt != nil {
		return repository.ErrDuplicate
	}
	if _, taken := m.byPhone[p.PhoneNumber]; taken {
		return repository.ErrDuplicate
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt, p.UpdatedAt = now, now
	m.profiles[p.ID] = *p
	m.byPhone[p.PhoneNumber] = p.ID
	c.ConsumedAt = &now
	m.challenges[p.PhoneNumber] = c
	return nil
}

func (m *memStore) Update(ctx context.Context, id uint64, u model.ProfileUpdate) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return model.Profile{}, repository.ErrNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Address != nil {
		if *u.Address == "" {
			p.Address = nil
		} else {
			a := *u.Address
			p.Address = &a
		}
	}
	if u.CardType != nil {
		p.CardType = *u.CardType
	}
	m.profiles[id] = p
	return p, nil
}

// seedProfile inserts a profile directly, bypassing the OTP gate.
func (m *memStore) seedProfile(phone string, familyMembers int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.profiles[m.nextID] = model.Profile{
		ID: m.nextID, PhoneNumber: phone, Name: "Seed", RationCardNo: "RC-0001",
		CardType: model.CardBPL, FamilyMembers: familyMembers,
	}
	m.byPhone[phone] = m.nextID
	return m.nextID
}

func (m *memStore) RolesFor(ctx context.Context, profileID uint64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{model.RoleCitizen}
	extra := append([]string(nil), m.roles[profileID]...)
	sort.Strings(extra)
	return append(out, extra...), nil
}

func (m *memStore) Grant(ctx context.Context, profileID uint64, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profileID]; !ok {
		return repository.ErrNotFound
	}
	if role == model.RoleCitizen {
		return nil
	}
	for _, r := range m.roles[profileID] {
		if r == role {
			return nil
		}
	}
	m.roles[profileID] = append(m.roles[profileID], role)
	return nil
}

func (m *memStore) breakdown(profileID uint64, from, to time.Time) ledger.Breakdown {
	w := ledger.Window{From: from, To: to}
	var b ledger.Breakdown
	for _, r := range m.usage {
		if r.ProfileID != profileID || !w.Contains(r.ClaimedAt) {
			continue
		}
		switch r.Status {
		case model.StatusClaimed:
			b.Claimed += r.Quantity
		case model.StatusSold:
			b.Sold += r.Quantity
		case model.StatusConverted:
			b.Converted += r.Quantity
		}
	}
	return b
}

func (m *memStore) UsageInWindow(ctx context.Context, profileID uint64, from, to time.Time) (ledger.Breakdown, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usageErr != nil {
		return ledger.Breakdown{}, m.usageErr
	}
	return m.breakdown(profileID, from, to), nil
}

func (m *memStore) ListInWindow(ctx context.Context, profileID uint64, from, to time.Time) ([]model.QuotaUsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := ledger.Window{From: from, To: to}
	var out []model.QuotaUsageRecord
	for i := len(m.usage) - 1; i >= 0; i-- {
		r := m.usage[i]
		if r.ProfileID == profileID && w.Contains(r.ClaimedAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) AppendGuarded(ctx context.Context, rec *model.QuotaUsageRecord, from, to time.Time, guard repository.GuardFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[rec.ProfileID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := guard(p.FamilyMembers, m.breakdown(rec.ProfileID, from, to)); err != nil {
		return err
	}
	m.nextID++
	rec.ID = m.nextID
	m.usage = append(m.usage, *rec)
	return nil
}

// senderStub records messages and fails with err when set.
type senderStub struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *senderStub) Send(ctx context.Context, phone, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, phone+": "+body)
	return nil
}

func (s *senderStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type limiterStub struct {
	retry time.Duration
	err   error
	calls int
}

func (l *limiterStub) Allow(ctx context.Context, phone string) (time.Duration, error) {
	l.calls++
	return l.retry, l.err
}

// publisherStub forwards events to channels so tests can wait for the
// asynchronous publish.
type publisherStub struct {
	registered chan queue.ProfileRegisteredEvent
	recorded   chan queue.QuotaRecordedEvent
}

func newPublisherStub() *publisherStub {
	return &publisherStub{
		registered: make(chan queue.ProfileRegisteredEvent, 16),
		recorded:   make(chan queue.QuotaRecordedEvent, 64),
	}
}

func (p *publisherStub) ProfileRegistered(ctx context.Context, ev queue.ProfileRegisteredEvent) error {
	p.registered <- ev
	return nil
}

func (p *publisherStub) QuotaRecorded(ctx context.Context, ev queue.QuotaRecordedEvent) error {
	p.recorded <- ev
	return nil
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var errBoom = errors.New("boom")

func testOTPConfig() config.OTPConfig {
	return config.OTPConfig{
		TTL:         10 * time.Minute,
		MaxAttempts: 5,
		BcryptCost:  bcrypt.MinCost,
	}
}

var testSessions = SessionIssuer{Secret: "test-secret", TTL: time.Hour}

// fixture bundles the services over one shared store and clock.
type fixture struct {
	store  *memStore
	sender *senderStub
	events *publisherStub
	clock  *clock
	otp    *OTPService
	reg    *RegistrationService
	quota  *QuotaService
	prof   *ProfileService
	code   string
}

func newFixture() *fixture {
	f := &fixture{
		store:  newMemStore(),
		sender: &senderStub{},
		events: newPublisherStub(),
		clock:  newClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)),
		code:   "482913",
	}
	log := logger.Discard()
	f.otp = NewOTPService(f.store, f.store, f.store, f.sender, nil, testSessions, testOTPConfig(), log)
	f.otp.now = f.clock.Now
	f.otp.generate = func() (string, error) { return f.code, nil }
	f.reg = NewRegistrationService(f.store, f.store, f.events, testSessions, log)
	f.reg.now = f.clock.Now
	f.quota = NewQuotaService(f.store, f.store, f.events, time.UTC, log)
	f.quota.now = f.clock.Now
	f.prof = NewProfileService(f.store, f.store, log)
	return f
}
