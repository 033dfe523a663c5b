package models

import "time"

// RewardMilestone is a qualifying action by a referred user that earns their
// referrer a credit.
type RewardMilestone string

const (
	MilestoneReferralSignup             RewardMilestone = "referral_signup"
	MilestoneReferralVendorRegistration RewardMilestone = "referral_vendor_registration"
)

// RewardCredit is one applied ledger entry. The composite unique index on
// (beneficiary, milestone, triggering user) is what makes crediting
// at-most-once: a redelivered event inserts nothing and moves no balance.
type RewardCredit struct {
	ID               string          `gorm:"primaryKey;type:uuid" json:"id"`
	BeneficiaryID    string          `gorm:"uniqueIndex:idx_reward_credits_dedup,priority:1;not null" json:"beneficiary_id"`
	Milestone        RewardMilestone `gorm:"uniqueIndex:idx_reward_credits_dedup,priority:2;size:64;not null" json:"milestone"`
	TriggeringUserID string          `gorm:"uniqueIndex:idx_reward_credits_dedup,priority:3;not null" json:"triggering_user_id"`

	Amount    float64   `gorm:"not null" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
