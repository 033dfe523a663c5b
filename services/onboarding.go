package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"referral-rewards-system/models"
	"referral-rewards-system/transport"
	"referral-rewards-system/utils"
)

// Onboarding states. Each waiting state re-prompts on invalid input and only
// advances on a valid answer; the user record is written once, at completion.
const (
	StateAwaitingName          = "awaiting_name"
	StateAwaitingPhone         = "awaiting_phone"
	StateAwaitingLocation      = "awaiting_location"
	StateAwaitingPayoutAddress = "awaiting_payout_address"
)

// OnboardingService runs the signup conversation: name → phone → location →
// payout address, then persists the user, allocates their referral code and
// hands the signup milestone to attribution.
type OnboardingService struct {
	Store       RecordStore
	Sessions    *SessionStore
	Registry    *ReferralCodeRegistry
	Attribution *AttributionService
	Messenger   transport.Messenger
}

func NewOnboardingService(store RecordStore, sessions *SessionStore, registry *ReferralCodeRegistry, attribution *AttributionService, messenger transport.Messenger) *OnboardingService {
	return &OnboardingService{
		Store:       store,
		Sessions:    sessions,
		Registry:    registry,
		Attribution: attribution,
		Messenger:   messenger,
	}
}

// Begin enters the flow after the explicit start trigger. referredByCode is
// whatever the deep link captured, already normalized; empty means organic.
func (s *OnboardingService) Begin(ctx context.Context, userID, referredByCode string) error {
	sess := &Session{
		UserID:         userID,
		Flow:           FlowOnboarding,
		State:          StateAwaitingName,
		ReferredByCode: referredByCode,
		StartedAt:      time.Now().UTC(),
	}
	if err := s.Sessions.Put(ctx, sess); err != nil {
		return err
	}
	log.Printf("User %s entered onboarding (referred by %q)", userID, referredByCode)
	return s.Messenger.SendMessage(ctx, userID,
		"Great! Let's get you set up. This will only take a moment.\n\nFirst, what should I call you? (Please enter your full name)",
		&transport.SendOptions{RemoveKeyboard: true})
}

// HandleInput feeds one user event into the machine. Validation failures keep
// the state unchanged and re-prompt; a store failure at the terminal step is
// reported to the user and ends the flow without retry.
func (s *OnboardingService) HandleInput(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	if isCancelInput(ev) {
		return s.Cancel(ctx, sess)
	}
	if isCommandInput(ev) {
		return s.Messenger.SendMessage(ctx, sess.UserID, "Please finish the current step first, or send /cancel to stop.", nil)
	}

	switch sess.State {
	case StateAwaitingName:
		return s.receiveName(ctx, sess, ev)
	case StateAwaitingPhone:
		return s.receivePhone(ctx, sess, ev)
	case StateAwaitingLocation:
		return s.receiveLocation(ctx, sess, ev)
	case StateAwaitingPayoutAddress:
		return s.receivePayoutAddress(ctx, sess, ev)
	default:
		// unknown state means a stale session — drop it and ask for a restart
		log.Printf("⚠️  User %s had onboarding session in unknown state %q, discarding", sess.UserID, sess.State)
		if err := s.Sessions.Delete(ctx, sess.UserID); err != nil {
			return err
		}
		return s.Messenger.SendMessage(ctx, sess.UserID, "Something went wrong with your signup. Please start again.", nil)
	}
}

// Cancel destroys the session without persisting anything. Cancelling twice
// is a no-op.
func (s *OnboardingService) Cancel(ctx context.Context, sess *Session) error {
	log.Printf("User %s cancelled onboarding", sess.UserID)
	if err := s.Sessions.Delete(ctx, sess.UserID); err != nil {
		return err
	}
	return s.Messenger.SendMessage(ctx, sess.UserID,
		"Onboarding cancelled. You can always start again when you're ready!",
		&transport.SendOptions{Buttons: [][]string{{"🚀 Get Started"}}})
}

func (s *OnboardingService) receiveName(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	name := trimmedText(ev)
	if !utils.ValidDisplayName(name) {
		return s.Messenger.SendMessage(ctx, sess.UserID, "Hmm, that name seems a bit off. Please enter a valid name (2-50 characters).", nil)
	}

	sess.Name = name
	sess.State = StateAwaitingPhone
	if err := s.Sessions.Put(ctx, sess); err != nil {
		return err
	}
	return s.Messenger.PromptForContact(ctx, sess.UserID,
		fmt.Sprintf("Thanks, %s! Now, could you share your phone number?\n\nTap the button below or type it in, including your country code (e.g., +254xxxxxxxxx).", name))
}

func (s *OnboardingService) receivePhone(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	var phone string
	if ev.Kind == transport.EventContact && ev.Contact != nil {
		// shared contact payload is trusted as-is
		phone = ev.Contact.PhoneNumber
	} else {
		normalized, ok := utils.NormalizePhone(ev.Text)
		if !ok {
			return s.Messenger.SendMessage(ctx, sess.UserID, "That doesn't look like a valid phone number. Please try again, including your country code (e.g., +254xxxxxxxxx).", nil)
		}
		phone = normalized
	}

	sess.PhoneNumber = phone
	sess.State = StateAwaitingLocation
	if err := s.Sessions.Put(ctx, sess); err != nil {
		return err
	}
	return s.Messenger.PromptForLocation(ctx, sess.UserID,
		"Got it! Lastly, where are you primarily based?\n\nShare your current location, or type your city/region.")
}

func (s *OnboardingService) receiveLocation(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	loc, ok := locationFromEvent(ev, 2, 50)
	if !ok {
		return s.Messenger.SendMessage(ctx, sess.UserID, "Please enter a valid city or region name (2-50 characters).", nil)
	}

	sess.Location = loc
	sess.State = StateAwaitingPayoutAddress
	if err := s.Sessions.Put(ctx, sess); err != nil {
		return err
	}
	return s.Messenger.SendMessage(ctx, sess.UserID,
		"Thanks! One last important step.\n\nPlease provide your Base network wallet address. This is where your earned UBT rewards will be sent monthly.\n\nIt should start with 0x and be 42 characters long. Please double-check it for accuracy!",
		&transport.SendOptions{RemoveKeyboard: true})
}

func (s *OnboardingService) receivePayoutAddress(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	address := trimmedText(ev)
	if !utils.ValidPayoutAddress(address) {
		return s.Messenger.SendMessage(ctx, sess.UserID,
			"Hmm, that doesn't look like a valid wallet address. It should start with 0x and be 42 characters long (e.g., 0x123...abc).\n\nPlease try again.", nil)
	}

	sess.PayoutAddress = address
	return s.complete(ctx, sess)
}

// complete is the terminal entry action: allocate the referral code, persist
// the fully assembled record in one write, then run attribution.
func (s *OnboardingService) complete(ctx context.Context, sess *Session) error {
	code, err := s.Registry.Generate(ctx)
	if err != nil {
		log.Printf("❌ Failed to allocate referral code for %s: %v", sess.UserID, err)
		return s.failAndEnd(ctx, sess)
	}

	user := &models.User{
		ID:                  sess.UserID,
		Name:                sess.Name,
		PhoneNumber:         sess.PhoneNumber,
		Location:            sess.Location,
		PayoutAddress:       sess.PayoutAddress,
		ReferralCode:        code,
		ReferredByCode:      sess.ReferredByCode,
		OnboardingCompleted: true,
		EarnedBalance:       0,
		ReferralCount:       0,
	}

	if err := s.Store.PutUser(ctx, user); err != nil {
		log.Printf("❌ Failed to save user %s: %v", sess.UserID, err)
		return s.failAndEnd(ctx, sess)
	}
	log.Printf("✅ User %s onboarded with referral code %s", user.ID, code)

	if err := s.Sessions.Delete(ctx, sess.UserID); err != nil {
		log.Printf("⚠️  Failed to clear onboarding session for %s: %v", sess.UserID, err)
	}

	if sendErr := s.Messenger.SendMessage(ctx, user.ID,
		fmt.Sprintf("🎉 Welcome aboard, %s! You are now part of the community.\n\nYour payout address is set to: %s\nYour unique referral code is: %s (Share this to earn UBT!)\n\nAll UBT you earn is tracked here and paid out to your address monthly.", user.Name, user.PayoutAddress, code),
		&transport.SendOptions{Buttons: MainMenuButtons()}); sendErr != nil {
		log.Printf("❌ Failed to send onboarding welcome to %s: %v", user.ID, sendErr)
	}

	if user.ReferredByCode != "" {
		if err := s.Attribution.Attribute(ctx, user, models.MilestoneReferralSignup); err != nil {
			log.Printf("❌ Signup attribution failed for %s: %v", user.ID, err)
		}
	}
	return nil
}

// failAndEnd reports a terminal failure and tears the session down; re-entry
// restarts from the first step.
func (s *OnboardingService) failAndEnd(ctx context.Context, sess *Session) error {
	if err := s.Sessions.Delete(ctx, sess.UserID); err != nil {
		log.Printf("⚠️  Failed to clear onboarding session for %s: %v", sess.UserID, err)
	}
	return s.Messenger.SendMessage(ctx, sess.UserID,
		"Sorry, there was an issue saving your details. Please start again.",
		&transport.SendOptions{Buttons: [][]string{{"🚀 Get Started"}}})
}

// --- shared input helpers ---

func trimmedText(ev transport.InputEvent) string {
	return strings.TrimSpace(ev.Text)
}

func locationFromEvent(ev transport.InputEvent, minText, maxText int) (models.Location, bool) {
	if ev.Kind == transport.EventLocation && ev.Location != nil {
		return models.Location{
			Kind:      models.LocationKindGPS,
			Latitude:  ev.Location.Latitude,
			Longitude: ev.Location.Longitude,
		}, true
	}
	text := strings.TrimSpace(ev.Text)
	if !utils.TextInRange(text, minText, maxText) {
		return models.Location{}, false
	}
	return models.Location{Kind: models.LocationKindText, Text: text}, true
}

func isCancelInput(ev transport.InputEvent) bool {
	switch strings.TrimSpace(ev.Text) {
	case "/cancel", "Cancel", "Stop":
		return true
	}
	return false
}

// isCommandInput reports whether the user sent a slash command instead of an
// answer. Commands never count as step input; /cancel is handled first.
func isCommandInput(ev transport.InputEvent) bool {
	return strings.HasPrefix(strings.TrimSpace(ev.Text), "/")
}
