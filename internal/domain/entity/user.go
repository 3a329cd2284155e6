package entity

import "time"

// User is the minimal account record the challenge subsystem needs from the
// user directory: an identifier to resolve, a password hash to replace on
// reset, and the investment-unlock stamp set by OTP verification. General
// account management lives elsewhere.
type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Email               string     `gorm:"size:100;not null;uniqueIndex" json:"email"`
	PasswordHash        string     `gorm:"size:100;not null" json:"-"`
	InvestmentEnabledAt *time.Time `gorm:"type:timestamp" json:"investment_enabled_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) InvestmentEnabled() bool {
	return u.InvestmentEnabledAt != nil
}
