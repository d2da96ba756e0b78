package model

import "time"

// Card types issued under the public distribution system.
const (
	CardAPL      = "apl"
	CardBPL      = "bpl"
	CardAAY      = "aay"
	CardPriority = "priority"
)

// Profile is a registered ration card holder.  Exactly one profile exists
// per phone number and it is only ever created by the registration gate.
//
// Fields:
//
//	ID            – primary key identifier.
//	PhoneNumber   – unique 10 digit phone number.
//	RationCardNo  – ration card number as printed on the card.
//	CardType      – one of apl, bpl, aay, priority.
//	Name          – card holder name.
//	Address       – optional postal address.
//	FamilyMembers – members on the card (1..20); drives the monthly entitlement.
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type Profile struct {
	ID            uint64    `json:"id"`
	PhoneNumber   string    `json:"phone_number"`
	RationCardNo  string    `json:"ration_card_no"`
	CardType      string    `json:"card_type"`
	Name          string    `json:"name"`
	Address       *string   `json:"address"`
	FamilyMembers int       `json:"family_members"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProfileUpdate carries the owner-editable fields.  Nil means unchanged.
type ProfileUpdate struct {
	Name     *string
	Address  *string
	CardType *string
}
