package model

import "time"

// OTPChallenge represents the most recent one-time code issued for a
// phone number.  The otp_challenges table is keyed by phone number so a
// newer challenge always replaces the previous one.  The plain code is
// never stored; only its bcrypt hash.
//
// Fields:
//
//	PhoneNumber    – 10 digit national number (primary key).
//	CodeHash       – bcrypt hash of the 6 digit code.
//	CreatedAt      – when the challenge was issued.
//	ExpiresAt      – CreatedAt plus the configured OTP lifetime.
//	Verified       – set exactly once by a successful verification.
//	FailedAttempts – number of wrong codes submitted for this challenge.
//	VerifiedAt     – when the challenge was verified (nullable).
//	ConsumedAt     – when a registration used the verified challenge (nullable).
type OTPChallenge struct {
	PhoneNumber    string     // otp_challenges.phone_number
	CodeHash       string     // otp_challenges.code_hash
	CreatedAt      time.Time  // otp_challenges.created_at
	ExpiresAt      time.Time  // otp_challenges.expires_at
	Verified       bool       // otp_challenges.verified
	FailedAttempts int        // otp_challenges.failed_attempts
	VerifiedAt     *time.Time // otp_challenges.verified_at
	ConsumedAt     *time.Time // otp_challenges.consumed_at
}

// ExpiredAt reports whether the challenge is past its lifetime at t.
func (c OTPChallenge) ExpiredAt(t time.Time) bool {
	return t.After(c.ExpiresAt)
}
