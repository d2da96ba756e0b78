package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/iliyamo/ration-connect/internal/ledger"
	"github.com/iliyamo/ration-connect/internal/logger"
	"github.com/iliyamo/ration-connect/internal/model"
	"github.com/iliyamo/ration-connect/internal/queue"
	"github.com/iliyamo/ration-connect/internal/repository"
)

// maxPostingKg bounds a single posting; no family can be entitled to more.
const maxPostingKg = 20 * ledger.KgPerMember

// QuantityFromKg converts an API quantity to grams.  Non-finite, zero,
// negative and sub-gram quantities are rejected.
func QuantityFromKg(kg float64) (model.Grams, error) {
	if math.IsNaN(kg) || math.IsInf(kg, 0) || kg <= 0 || kg > maxPostingKg {
		return 0, ErrInvalidQuantity
	}
	g := model.GramsFromKg(kg)
	if g <= 0 {
		return 0, ErrInvalidQuantity
	}
	return g, nil
}

// RecordInput is one posting against the monthly quota.
type RecordInput struct {
	ProfileID      uint64
	Status         string
	Quantity       model.Grams
	DeliveryMethod string
}

// QuotaService reconciles postings against the monthly entitlement.
type QuotaService struct {
	profiles ProfileStore
	quota    QuotaStore
	events   EventPublisher
	loc      *time.Location
	log      *slog.Logger
	now      func() time.Time
}

// NewQuotaService wires a QuotaService bucketing months in loc (UTC when
// nil).  events may be nil.
func NewQuotaService(profiles ProfileStore, quota QuotaStore, events EventPublisher, loc *time.Location, log *slog.Logger) *QuotaService {
	if loc == nil {
		loc = time.UTC
	}
	return &QuotaService{
		profiles: profiles,
		quota:    quota,
		events:   events,
		loc:      loc,
		log:      log.With(logger.Module("service.quota")),
		now:      time.Now,
	}
}

func (s *QuotaService) window(month string) (ledger.Window, error) {
	w, err := ledger.ParseMonth(month, s.now(), s.loc)
	if err != nil {
		return ledger.Window{}, ErrInvalidMonth
	}
	return w, nil
}

// ComputeUsage derives the quota of a profile for month ("YYYY-MM", empty
// for the current month).
func (s *QuotaService) ComputeUsage(ctx context.Context, profileID uint64, month string) (ledger.MonthlyQuota, error) {
	w, err := s.window(month)
	if err != nil {
		return ledger.MonthlyQuota{}, err
	}
	p, err := s.profiles.GetByID(ctx, profileID)
	if errors.Is(err, repository.ErrNotFound) {
		return ledger.MonthlyQuota{}, ErrProfileNotFound
	}
	if err != nil {
		return ledger.MonthlyQuota{}, storageErr("load profile", err)
	}
	used, err := s.quota.UsageInWindow(ctx, profileID, w.From, w.To)
	if err != nil {
		return ledger.MonthlyQuota{}, storageErr("aggregate usage", err)
	}
	return ledger.FromUsage(p.FamilyMembers, w, used), nil
}

// ListRecords returns the postings of month, newest first.
func (s *QuotaService) ListRecords(ctx context.Context, profileID uint64, month string) ([]model.QuotaUsageRecord, error) {
	w, err := s.window(month)
	if err != nil {
		return nil, err
	}
	recs, err := s.quota.ListInWindow(ctx, profileID, w.From, w.To)
	if err != nil {
		return nil, storageErr("list records", err)
	}
	return recs, nil
}

func checkDelivery(status, method string) (string, error) {
	if status != model.StatusClaimed {
		if method != "" && method != model.DeliveryNone {
			return "", ErrInvalidDelivery
		}
		return model.DeliveryNone, nil
	}
	switch method {
	case model.DeliveryPayNow, model.DeliveryPayAtShop, model.DeliveryHomeDelivery:
		return method, nil
	}
	return "", ErrInvalidDelivery
}

// Record appends a posting to the current month.  The check against the
// entitlement and the insert happen under one per-profile lock, so
// concurrent postings can never jointly exceed the month's quota.  On
// success the posted record and the resulting quota are returned.
func (s *QuotaService) Record(ctx context.Context, in RecordInput) (model.QuotaUsageRecord, ledger.MonthlyQuota, error) {
	if !ledger.ValidStatus(in.Status) {
		return model.QuotaUsageRecord{}, ledger.MonthlyQuota{}, ErrInvalidStatus
	}
	if in.Quantity <= 0 {
		return model.QuotaUsageRecord{}, ledger.MonthlyQuota{}, ErrInvalidQuantity
	}
	method, err := checkDelivery(in.Status, in.DeliveryMethod)
	if err != nil {
		return model.QuotaUsageRecord{}, ledger.MonthlyQuota{}, err
	}

	now := s.now().UTC()
	w := ledger.MonthWindow(now, s.loc)
	rec := model.QuotaUsageRecord{
		ProfileID:      in.ProfileID,
		Quantity:       in.Quantity,
		Status:         in.Status,
		ClaimedAt:      now,
		DeliveryMethod: method,
	}

	var after ledger.MonthlyQuota
	guard := func(familyMembers int, used ledger.Breakdown) error {
		if err := ledger.FromUsage(familyMembers, w, used).Admit(in.Quantity); err != nil {
			return err
		}
		switch in.Status {
		case model.StatusClaimed:
			used.Claimed += in.Quantity
		case model.StatusSold:
			used.Sold += in.Quantity
		case model.StatusConverted:
			used.Converted += in.Quantity
		}
		after = ledger.FromUsage(familyMembers, w, used)
		return nil
	}

	err = s.quota.AppendGuarded(ctx, &rec, w.From, w.To, guard)
	var exceeded *ledger.ExceededError
	switch {
	case errors.As(err, &exceeded):
		return model.QuotaUsageRecord{}, ledger.MonthlyQuota{}, &QuotaExceededError{Remaining: exceeded.Remaining}
	case errors.Is(err, repository.ErrNotFound):
		return model.QuotaUsageRecord{}, ledger.MonthlyQuota{}, ErrProfileNotFound
	case err != nil:
		s.log.Error("append usage failed", slog.Uint64("profile_id", in.ProfileID), logger.Err(err))
		return model.QuotaUsageRecord{}, ledger.MonthlyQuota{}, storageErr("append usage", err)
	}
	s.log.Info("quota recorded",
		slog.Uint64("profile_id", rec.ProfileID),
		slog.Uint64("record_id", rec.ID),
		slog.String("status", rec.Status),
		slog.Int64("grams", int64(rec.Quantity)),
	)

	if s.events != nil {
		ev := queue.QuotaRecordedEvent{
			RecordID:       rec.ID,
			ProfileID:      rec.ProfileID,
			Status:         rec.Status,
			QuantityKg:     rec.Quantity.Kg(),
			DeliveryMethod: rec.DeliveryMethod,
			Month:          after.Month,
			RemainingKg:    after.Remaining.Kg(),
			RecordedAt:     now.Format(time.RFC3339),
		}
		publishAsync(s.log, queue.TypeQuotaRecorded, func(ctx context.Context) error {
			return s.events.QuotaRecorded(ctx, ev)
		})
	}
	return rec, after, nil
}
