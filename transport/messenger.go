package transport

import (
	"context"
	"fmt"

	"referral-rewards-system/models"
)

// EventKind discriminates what a user actually sent.
type EventKind string

const (
	EventText     EventKind = "text"
	EventContact  EventKind = "contact"
	EventLocation EventKind = "location"
)

// Contact is a structured contact-share payload.
type Contact struct {
	PhoneNumber string `json:"phone_number"`
}

// GeoPoint is a shared location pin.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// InputEvent is one inbound user action, delivered by webhook or poller.
// Reply-keyboard presses arrive as EventText carrying the button label.
type InputEvent struct {
	UserID   string
	Kind     EventKind
	Text     string
	Contact  *Contact
	Location *GeoPoint
}

// SendOptions controls the reply keyboard attached to an outgoing message.
type SendOptions struct {
	Buttons        [][]string
	OneTime        bool
	RemoveKeyboard bool
}

// RewardNotification is the payload handed to the transport when a referrer
// earns a credit; the transport owns how it reads on screen.
type RewardNotification struct {
	ReferrerID      string
	BeneficiaryName string
	Amount          float64
	Milestone       models.RewardMilestone
}

// Messenger is the outbound half of the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, userID, text string, opts *SendOptions) error
	PromptForContact(ctx context.Context, userID, text string) error
	PromptForLocation(ctx context.Context, userID, text string) error
	NotifyReward(ctx context.Context, n RewardNotification) error
}

// RenderRewardNotification is the default text rendering, shared by the bot
// client and tests.
func RenderRewardNotification(n RewardNotification) string {
	switch n.Milestone {
	case models.MilestoneReferralVendorRegistration:
		return fmt.Sprintf("🎉 %s (whom you referred) just registered as a vendor! You've earned +%.0f UBT.", n.BeneficiaryName, n.Amount)
	default:
		return fmt.Sprintf("🎉 Someone you referred (%s) just joined! You've earned %.0f UBT (added to your monthly payout).", n.BeneficiaryName, n.Amount)
	}
}
