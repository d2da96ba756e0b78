package handler

import (
	"time"

	"github.com/iliyamo/ration-connect/internal/ledger"
	"github.com/iliyamo/ration-connect/internal/model"
	"github.com/iliyamo/ration-connect/internal/utils"
)

// Responses speak kilograms; the ledger keeps grams.

type sessionPart struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toSession(t *utils.SessionToken) *sessionPart {
	if t == nil {
		return nil
	}
	return &sessionPart{Token: t.Token, ExpiresAt: t.Exp}
}

type breakdownResp struct {
	ClaimedKg   float64 `json:"claimed_kg"`
	SoldKg      float64 `json:"sold_kg"`
	ConvertedKg float64 `json:"converted_kg"`
}

type quotaResp struct {
	Month         string        `json:"month"`
	EntitlementKg float64       `json:"entitlement_kg"`
	UsedKg        float64       `json:"used_kg"`
	RemainingKg   float64       `json:"remaining_kg"`
	Breakdown     breakdownResp `json:"breakdown"`
}

func toQuota(q ledger.MonthlyQuota) quotaResp {
	return quotaResp{
		Month:         q.Month,
		EntitlementKg: q.Entitlement.Kg(),
		UsedKg:        q.Used.Kg(),
		RemainingKg:   q.Remaining.Kg(),
		Breakdown: breakdownResp{
			ClaimedKg:   q.Breakdown.Claimed.Kg(),
			SoldKg:      q.Breakdown.Sold.Kg(),
			ConvertedKg: q.Breakdown.Converted.Kg(),
		},
	}
}

type recordResp struct {
	ID             uint64    `json:"id"`
	QuantityKg     float64   `json:"quantity_kg"`
	Status         string    `json:"status"`
	DeliveryMethod string    `json:"delivery_method"`
	ClaimedAt      time.Time `json:"claimed_at"`
}

func toRecord(r model.QuotaUsageRecord) recordResp {
	return recordResp{
		ID:             r.ID,
		QuantityKg:     r.Quantity.Kg(),
		Status:         r.Status,
		DeliveryMethod: r.DeliveryMethod,
		ClaimedAt:      r.ClaimedAt,
	}
}
