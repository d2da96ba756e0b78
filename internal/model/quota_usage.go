package model

import (
	"math"
	"time"
)

// Usage statuses recorded in the quota ledger.
const (
	StatusClaimed   = "claimed"
	StatusSold      = "sold"
	StatusConverted = "converted"
)

// Delivery methods accepted for a claim.  Sales and conversions are
// recorded with DeliveryNone.
const (
	DeliveryPayNow       = "pay_now"
	DeliveryPayAtShop    = "pay_at_shop"
	DeliveryHomeDelivery = "home_delivery"
	DeliveryNone         = "none"
)

// Grams is a commodity quantity.  The ledger works in whole grams so that
// sums and comparisons are exact; the API speaks kilograms.
type Grams int64

// GramsFromKg converts kilograms to grams, rounding to the nearest gram.
func GramsFromKg(kg float64) Grams {
	return Grams(math.Round(kg * 1000))
}

// Kg returns the quantity in kilograms.
func (g Grams) Kg() float64 {
	return float64(g) / 1000
}

// QuotaUsageRecord is one append-only ledger entry.  Records are never
// updated or deleted.
//
// Fields:
//
//	ID             – primary key identifier.
//	ProfileID      – profile whose quota is consumed.
//	Quantity       – consumed quantity in grams (> 0).
//	Status         – claimed, sold or converted.
//	ClaimedAt      – timestamp used for month bucketing (UTC).
//	DeliveryMethod – how a claim is fulfilled.
type QuotaUsageRecord struct {
	ID             uint64    // quota_usage.id
	ProfileID      uint64    // quota_usage.profile_id
	Quantity       Grams     // quota_usage.quantity_g
	Status         string    // quota_usage.status
	ClaimedAt      time.Time // quota_usage.claimed_at
	DeliveryMethod string    // quota_usage.delivery_method
}
