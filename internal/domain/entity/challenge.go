package entity

import "time"

// ChallengePurpose discriminates the flows a challenge may belong to. A live
// code issued for one purpose must never validate another, so the purpose is
// part of every lookup.
type ChallengePurpose string

const (
	PurposePasswordReset   ChallengePurpose = "password_reset"
	PurposeOtpVerification ChallengePurpose = "otp_verification"
)

// Valid reports whether p is a known purpose.
func (p ChallengePurpose) Valid() bool {
	return p == PurposePasswordReset || p == PurposeOtpVerification
}

// Challenge stores the digest of a single-use secret issued to prove control
// of an account before a sensitive action. The plaintext secret is never
// persisted; at rest only SecretDigest exists.
type Challenge struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	SubjectID    uint             `gorm:"not null;index" json:"subject_id"`
	Purpose      ChallengePurpose `gorm:"size:32;not null;index" json:"purpose"`
	SecretDigest string           `gorm:"size:64;not null;uniqueIndex" json:"-"`
	IssuedAt     time.Time        `gorm:"not null" json:"issued_at"`
	ExpiresAt    time.Time        `gorm:"not null;index" json:"expires_at"`
	ConsumedAt   *time.Time       `gorm:"index" json:"consumed_at,omitempty"`
	SupersededAt *time.Time       `json:"superseded_at,omitempty"`
	CreatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Challenge) TableName() string {
	return "challenges"
}

func (c *Challenge) IsConsumed() bool {
	return c.ConsumedAt != nil
}

func (c *Challenge) IsSuperseded() bool {
	return c.SupersededAt != nil
}

func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsLive reports whether the challenge can still be consumed at the given
// instant. Consumed, superseded and expired are all terminal.
func (c *Challenge) IsLive(now time.Time) bool {
	return !c.IsConsumed() && !c.IsSuperseded() && !c.IsExpired(now)
}
