package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"referral-rewards-system/models"
	"referral-rewards-system/transport"
	"referral-rewards-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Vendor registration states. Same machine shape as onboarding, with a
// confirmation step that can loop back to the start.
const (
	StateAwaitingBusinessName   = "awaiting_business_name"
	StateAwaitingVendorLocation = "awaiting_vendor_location"
	StateAwaitingCategory       = "awaiting_category"
	StateAwaitingPayoutInfo     = "awaiting_payout_info"
	StateAwaitingConfirmation   = "awaiting_confirmation"
)

const (
	confirmSubmitLabel  = "✅ Yes, Submit"
	confirmRestartLabel = "❌ No, Restart"
)

// VendorFlowService runs the business registration conversation and, on
// submission, triggers the vendor-registration milestone for the submitter's
// referrer.
type VendorFlowService struct {
	Store       RecordStore
	Sessions    *SessionStore
	Attribution *AttributionService
	Messenger   transport.Messenger
	AdminChatID string
}

func NewVendorFlowService(store RecordStore, sessions *SessionStore, attribution *AttributionService, messenger transport.Messenger, adminChatID string) *VendorFlowService {
	return &VendorFlowService{
		Store:       store,
		Sessions:    sessions,
		Attribution: attribution,
		Messenger:   messenger,
		AdminChatID: adminChatID,
	}
}

// Begin enters the flow. Vendor registration needs an onboarded user record
// to hang the vendor off; anyone else is pointed back to signup.
func (s *VendorFlowService) Begin(ctx context.Context, userID string) error {
	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return s.Messenger.SendMessage(ctx, userID, "Service temporarily unavailable. Please try again later.", nil)
	}
	if user == nil || !user.OnboardingCompleted {
		return s.Messenger.SendMessage(ctx, userID,
			"It seems you haven't completed the initial setup yet. Please tap 🚀 Get Started first!",
			&transport.SendOptions{Buttons: [][]string{{"🚀 Get Started"}}, OneTime: true})
	}

	sess := &Session{
		UserID:    userID,
		Flow:      FlowVendor,
		State:     StateAwaitingBusinessName,
		StartedAt: time.Now().UTC(),
	}
	if err := s.Sessions.Put(ctx, sess); err != nil {
		return err
	}
	log.Printf("User %s starting vendor registration", userID)
	return s.Messenger.SendMessage(ctx, userID,
		"Great! Let's register your business. 🏪\n\nWhat is the name of your business?",
		&transport.SendOptions{RemoveKeyboard: true})
}

func (s *VendorFlowService) HandleInput(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	if isCancelInput(ev) {
		return s.Cancel(ctx, sess)
	}
	if isCommandInput(ev) {
		return s.Messenger.SendMessage(ctx, sess.UserID, "Please finish the current step first, or send /cancel to stop.", nil)
	}

	switch sess.State {
	case StateAwaitingBusinessName:
		return s.receiveBusinessName(ctx, sess, ev)
	case StateAwaitingVendorLocation:
		return s.receiveLocation(ctx, sess, ev)
	case StateAwaitingCategory:
		return s.receiveCategory(ctx, sess, ev)
	case StateAwaitingPayoutInfo:
		return s.receivePayoutInfo(ctx, sess, ev)
	case StateAwaitingConfirmation:
		return s.receiveConfirmation(ctx, sess, ev)
	default:
		log.Printf("⚠️  User %s had vendor session in unknown state %q, discarding", sess.UserID, sess.State)
		if err := s.Sessions.Delete(ctx, sess.UserID); err != nil {
			return err
		}
		return s.Messenger.SendMessage(ctx, sess.UserID, "Something went wrong with your registration. Please start again.", nil)
	}
}

func (s *VendorFlowService) Cancel(ctx context.Context, sess *Session) error {
	log.Printf("User %s cancelled vendor registration", sess.UserID)
	if err := s.Sessions.Delete(ctx, sess.UserID); err != nil {
		return err
	}
	return s.Messenger.SendMessage(ctx, sess.UserID,
		"Vendor registration cancelled. You can start again anytime from the main menu.",
		&transport.SendOptions{Buttons: MainMenuButtons()})
}

func (s *VendorFlowService) receiveBusinessName(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	name := trimmedText(ev)
	if !utils.TextInRange(name, 3, 99) {
		return s.Messenger.SendMessage(ctx, sess.UserID, "Please enter a valid business name (3-99 characters).", nil)
	}

	sess.BusinessName = name
	sess.State = StateAwaitingVendorLocation
	if err := s.Sessions.Put(ctx, sess); err != nil {
		return err
	}
	return s.Messenger.PromptForLocation(ctx, sess.UserID,
		"Thanks! Now, please share your business location. Send your current location or type the address/city.")
}

func (s *VendorFlowService) receiveLocation(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	loc, ok := locationFromEvent(ev, 3, 99)
	if !ok {
		return s.Messenger.SendMessage(ctx, sess.UserID, "Please enter a valid location description (3-99 characters).", nil)
	}

	sess.Location = loc
	sess.State = StateAwaitingCategory
	if err := s.Sessions.Put(ctx, sess); err != nil {
		return err
	}

	var rows [][]string
	for _, cat := range models.VendorCategoryOrder {
		rows = append(rows, []string{models.VendorCategoryLabels[cat]})
	}
	return s.Messenger.SendMessage(ctx, sess.UserID,
		"Got it! What category best describes your business? Please choose one from the list below.",
		&transport.SendOptions{Buttons: rows, OneTime: true})
}

func (s *VendorFlowService) receiveCategory(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	cat, ok := models.VendorCategoryFromLabel(trimmedText(ev))
	if !ok {
		return s.Messenger.SendMessage(ctx, sess.UserID, "Please pick a category from the buttons below.", nil)
	}

	sess.Category = cat
	sess.State = StateAwaitingPayoutInfo
	if err := s.Sessions.Put(ctx, sess); err != nil {
		return err
	}
	return s.Messenger.SendMessage(ctx, sess.UserID,
		"Excellent. Now, please provide your UBT wallet address OR the phone number linked to your UBT account. This will be used for receiving payments.",
		&transport.SendOptions{RemoveKeyboard: true})
}

func (s *VendorFlowService) receivePayoutInfo(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	info := trimmedText(ev)
	if !utils.TextInRange(info, 6, 99) {
		return s.Messenger.SendMessage(ctx, sess.UserID, "Please enter a valid UBT wallet address or phone number (6-99 characters).", nil)
	}

	sess.PayoutInfo = info
	sess.State = StateAwaitingConfirmation
	if err := s.Sessions.Put(ctx, sess); err != nil {
		return err
	}

	summary := fmt.Sprintf(
		"📝 Please confirm your business details:\n\n🏢 Business Name: %s\n📍 Location: %s\n🏷️ Category: %s\n💳 UBT Wallet/Phone: %s\n\nIs all this information correct?",
		sess.BusinessName,
		utils.FormatLocation(sess.Location),
		models.VendorCategoryLabels[sess.Category],
		sess.PayoutInfo,
	)
	return s.Messenger.SendMessage(ctx, sess.UserID, summary,
		&transport.SendOptions{Buttons: [][]string{{confirmSubmitLabel, confirmRestartLabel}}, OneTime: true})
}

func (s *VendorFlowService) receiveConfirmation(ctx context.Context, sess *Session, ev transport.InputEvent) error {
	switch trimmedText(ev) {
	case confirmSubmitLabel:
		return s.complete(ctx, sess)
	case confirmRestartLabel:
		// wipe the collected answers and loop back to the first step
		sess.BusinessName = ""
		sess.Location = models.Location{}
		sess.Category = ""
		sess.PayoutInfo = ""
		sess.State = StateAwaitingBusinessName
		if err := s.Sessions.Put(ctx, sess); err != nil {
			return err
		}
		return s.Messenger.SendMessage(ctx, sess.UserID,
			"No problem. Let's start the registration over.\n\nWhat is the name of your business?",
			&transport.SendOptions{RemoveKeyboard: true})
	default:
		return s.Messenger.SendMessage(ctx, sess.UserID, "Please answer with one of the buttons below.",
			&transport.SendOptions{Buttons: [][]string{{confirmSubmitLabel, confirmRestartLabel}}, OneTime: true})
	}
}

func (s *VendorFlowService) complete(ctx context.Context, sess *Session) error {
	vendor := &models.Vendor{
		ID:           uuid.NewString(),
		OwnerUserID:  sess.UserID,
		BusinessName: sess.BusinessName,
		Slug:         slug.Make(sess.BusinessName),
		Location:     sess.Location,
		Category:     sess.Category,
		PayoutInfo:   sess.PayoutInfo,
		Status:       models.VendorStatusPendingApproval,
		SubmittedAt:  time.Now().UTC(),
	}

	vendorID, err := s.Store.CreateVendor(ctx, vendor)
	if err != nil {
		log.Printf("❌ Failed to save vendor registration for %s: %v", sess.UserID, err)
		if delErr := s.Sessions.Delete(ctx, sess.UserID); delErr != nil {
			log.Printf("⚠️  Failed to clear vendor session for %s: %v", sess.UserID, delErr)
		}
		return s.Messenger.SendMessage(ctx, sess.UserID,
			"Sorry, there was an issue submitting your registration. Please try again.",
			&transport.SendOptions{Buttons: MainMenuButtons()})
	}
	log.Printf("✅ Vendor %s (%s) submitted by %s", vendorID, vendor.BusinessName, sess.UserID)

	if err := s.Store.SetUserVendorRegistered(ctx, sess.UserID); err != nil {
		log.Printf("❌ Failed to set vendor_registered for %s: %v", sess.UserID, err)
	}

	if err := s.Sessions.Delete(ctx, sess.UserID); err != nil {
		log.Printf("⚠️  Failed to clear vendor session for %s: %v", sess.UserID, err)
	}

	if sendErr := s.Messenger.SendMessage(ctx, sess.UserID,
		"🎉 Your business registration has been submitted successfully!\nWe'll review it and notify you once it's approved. Thank you for joining the merchant network!",
		&transport.SendOptions{Buttons: MainMenuButtons()}); sendErr != nil {
		log.Printf("❌ Failed to send vendor confirmation to %s: %v", sess.UserID, sendErr)
	}

	// The submitter's referrer earns the vendor-registration bonus — a second
	// milestone, independent from the signup reward.
	user, err := s.Store.GetUser(ctx, sess.UserID)
	if err != nil {
		log.Printf("❌ Failed to reload user %s for vendor attribution: %v", sess.UserID, err)
	} else if err := s.Attribution.Attribute(ctx, user, models.MilestoneReferralVendorRegistration); err != nil {
		log.Printf("❌ Vendor attribution failed for %s: %v", sess.UserID, err)
	}

	if s.AdminChatID != "" {
		adminMsg := fmt.Sprintf("🔔 New vendor registration: %s (%s) by user %s — pending approval. Vendor ID: %s",
			vendor.BusinessName, models.VendorCategoryLabels[vendor.Category], sess.UserID, vendorID)
		if err := s.Messenger.SendMessage(ctx, s.AdminChatID, adminMsg, nil); err != nil {
			log.Printf("❌ Failed to notify admin about vendor %s: %v", vendorID, err)
		}
	} else {
		log.Println("⚠️  ADMIN_CHAT_ID not set, skipping vendor registration notification")
	}
	return nil
}
