// Package ledger computes monthly rice entitlements and reconciles them
// against the append-only usage records of a profile.  Everything here is
// pure: callers load records from the store and decide what to persist.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/ration-connect/internal/model"
)

// KgPerMember is the monthly rice entitlement per family member.
const KgPerMember = 6

// monthLayout is the wire format of a ledger month ("2026-10").
const monthLayout = "2006-01"

// ErrInvalidMonth is returned by ParseMonth for malformed input.
var ErrInvalidMonth = errors.New("month must be formatted as YYYY-MM")

// ExceededError reports that a posting would push usage past the
// entitlement.  Remaining is the balance still available this month.
type ExceededError struct {
	Remaining model.Grams
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("monthly quota exceeded: %.3f kg remaining", e.Remaining.Kg())
}

// Entitlement returns the monthly allowance for a family size.
func Entitlement(familyMembers int) model.Grams {
	if familyMembers < 0 {
		familyMembers = 0
	}
	return model.GramsFromKg(float64(familyMembers * KgPerMember))
}

// Window is a half-open calendar month [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// MonthWindow returns the calendar month containing t, evaluated in loc.
// A nil loc means UTC.
func MonthWindow(t time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	from := time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
	return Window{From: from, To: from.AddDate(0, 1, 0)}
}

// ParseMonth parses "YYYY-MM" into its window in loc.  An empty string
// yields the month containing now.
func ParseMonth(s string, now time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	if s == "" {
		return MonthWindow(now, loc), nil
	}
	t, err := time.ParseInLocation(monthLayout, s, loc)
	if err != nil {
		return Window{}, ErrInvalidMonth
	}
	return MonthWindow(t, loc), nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Month returns the "YYYY-MM" label of the window.
func (w Window) Month() string {
	return w.From.Format(monthLayout)
}

// Breakdown splits monthly usage by record status.
type Breakdown struct {
	Claimed   model.Grams
	Sold      model.Grams
	Converted model.Grams
}

// Total is the sum across all statuses.
func (b Breakdown) Total() model.Grams {
	return b.Claimed + b.Sold + b.Converted
}

// MonthlyQuota is the derived balance for one profile and month.
type MonthlyQuota struct {
	Month       string
	Entitlement model.Grams
	Used        model.Grams
	Remaining   model.Grams
	Breakdown   Breakdown
}

// Summarize aggregates the records that fall inside w.  Records outside
// the window are ignored so callers may pass a wider set.
func Summarize(familyMembers int, w Window, records []model.QuotaUsageRecord) MonthlyQuota {
	var b Breakdown
	for _, r := range records {
		if !w.Contains(r.ClaimedAt) {
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
	return FromUsage(familyMembers, w, b)
}

// FromUsage builds a MonthlyQuota from an already aggregated breakdown.
func FromUsage(familyMembers int, w Window, b Breakdown) MonthlyQuota {
	ent := Entitlement(familyMembers)
	used := b.Total()
	rem := ent - used
	if rem < 0 {
		rem = 0
	}
	return MonthlyQuota{
		Month:       w.Month(),
		Entitlement: ent,
		Used:        used,
		Remaining:   rem,
		Breakdown:   b,
	}
}

// Admit checks whether qty can still be posted against q.
func (q MonthlyQuota) Admit(qty model.Grams) error {
	if qty > q.Remaining {
		return &ExceededError{Remaining: q.Remaining}
	}
	return nil
}

// ValidStatus reports whether s is a known usage status.
func ValidStatus(s string) bool {
	switch s {
	case model.StatusClaimed, model.StatusSold, model.StatusConverted:
		return true
	}
	return false
}
