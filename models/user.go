package models

import (
	"time"
)

// LocationKind tags how a location was captured: shared GPS pin or typed text.
type LocationKind string

const (
	LocationKindGPS  LocationKind = "gps"
	LocationKindText LocationKind = "text"
)

// Location is either a coordinate pair or a free-text city/region, tagged by Kind.
type Location struct {
	Kind      LocationKind `gorm:"size:8" json:"kind"`
	Text      string       `json:"text,omitempty"`
	Latitude  float64      `json:"latitude,omitempty"`
	Longitude float64      `json:"longitude,omitempty"`
}

// User is a fully onboarded community member. The record is written once, in
// full, when onboarding completes — in-flight answers live only in the session
// store until then. After creation only the reward ledger (balance, payout
// flags) and the vendor flow (VendorRegistered) mutate it.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"` // transport user ID, opaque to us
	Name        string `gorm:"not null" json:"name"`
	PhoneNumber string `gorm:"not null" json:"phone_number"`

	Location      Location `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	PayoutAddress string   `gorm:"not null" json:"payout_address"` // 0x + 40 hex

	ReferralCode   string `gorm:"uniqueIndex;not null" json:"referral_code"`
	ReferredByCode string `gorm:"index" json:"referred_by_code,omitempty"` // immutable once set

	OnboardingCompleted bool `gorm:"default:false" json:"onboarding_completed"`
	VendorRegistered    bool `gorm:"default:false" json:"vendor_registered"`

	// EarnedBalance only ever grows; increments go through the reward ledger
	// as SQL deltas, never read-modify-write.
	EarnedBalance float64    `gorm:"default:0" json:"earned_balance"`
	ReferralCount int64      `gorm:"default:0" json:"referral_count"`
	PayoutReady   bool       `gorm:"default:false" json:"payout_ready"`
	LastPayoutAt  *time.Time `json:"last_payout_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
