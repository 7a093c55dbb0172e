package model

import "time"

// Referral program constants, in TZS.
const (
	ReferralBonus     = 100.0
	WithdrawThreshold = 5000.0
)

// User is a referral account keyed by phone number, created lazily on the
// first referral-related interaction.
type User struct {
	Phone        string
	Balance      float64
	ReferredBy   *string
	Referrals    int
	Withdrawn    float64
	ReferralCode *string
	Language     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
