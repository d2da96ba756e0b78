// Package queue carries ledger events over RabbitMQ.  Events are
// fire-and-forget: the database is the source of truth and a lost event
// only costs an audit line.
package queue

// EventsQueue is the durable queue every ledger event is routed to.
const EventsQueue = "ration.events"

// Event types, carried in the AMQP Type property.
const (
	TypeProfileRegistered = "profile.registered"
	TypeQuotaRecorded     = "quota.recorded"
)

// ProfileRegisteredEvent is published after a profile is created.  The
// phone number is masked before it leaves the process.
type ProfileRegisteredEvent struct {
	ProfileID     uint64 `json:"profile_id"`
	Phone         string `json:"phone"`
	CardType      string `json:"card_type"`
	FamilyMembers int    `json:"family_members"`
	RegisteredAt  string `json:"registered_at"`
}

// QuotaRecordedEvent is published after a usage record is appended.
// Quantities are in kilograms, as on the HTTP API.
type QuotaRecordedEvent struct {
	RecordID       uint64  `json:"record_id"`
	ProfileID      uint64  `json:"profile_id"`
	Status         string  `json:"status"`
	QuantityKg     float64 `json:"quantity_kg"`
	DeliveryMethod string  `json:"delivery_method"`
	Month          string  `json:"month"`
	RemainingKg    float64 `json:"remaining_kg"`
	RecordedAt     string  `json:"recorded_at"`
}
