package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"referral-rewards-system/transport"
)

// MainMenuButtons is the keyboard onboarded users see between flows.
func MainMenuButtons() [][]string {
	return [][]string{
		{"💳 Check My Wallet", "🎁 My Referrals"},
		{"💼 Register My Business"},
		{"🆘 Help"},
	}
}

// Dispatcher routes every inbound event to the right state machine or menu
// action. Events for the same user are processed one at a time; distinct
// users run concurrently and share nothing but the stores.
type Dispatcher struct {
	Store      RecordStore
	Sessions   *SessionStore
	Onboarding *OnboardingService
	Vendor     *VendorFlowService
	Messenger  transport.Messenger

	// one mutex per user ever seen this process lifetime; entries are never
	// evicted, so the map grows with the distinct-user count
	locks sync.Map // userID -> *sync.Mutex
}

func NewDispatcher(store RecordStore, sessions *SessionStore, onboarding *OnboardingService, vendor *VendorFlowService, messenger transport.Messenger) *Dispatcher {
	return &Dispatcher{
		Store:      store,
		Sessions:   sessions,
		Onboarding: onboarding,
		Vendor:     vendor,
		Messenger:  messenger,
	}
}

func (d *Dispatcher) userLock(userID string) *sync.Mutex {
	v, _ := d.locks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Dispatch handles one input event end to end. At most one event per user is
// in flight at a time; the transition blocks only on store and transport
// calls.
func (d *Dispatcher) Dispatch(ctx context.Context, ev transport.InputEvent) error {
	if ev.UserID == "" {
		return fmt.Errorf("input event without user id")
	}

	mu := d.userLock(ev.UserID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := d.Sessions.Get(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if sess != nil {
		switch sess.Flow {
		case FlowVendor:
			return d.Vendor.HandleInput(ctx, sess, ev)
		default:
			return d.Onboarding.HandleInput(ctx, sess, ev)
		}
	}

	return d.handleMenu(ctx, ev)
}

func (d *Dispatcher) handleMenu(ctx context.Context, ev transport.InputEvent) error {
	text := strings.TrimSpace(ev.Text)

	switch {
	case strings.HasPrefix(text, "/start"):
		return d.handleStart(ctx, ev.UserID, text)
	case text == "🚀 Get Started":
		return d.beginOnboarding(ctx, ev.UserID)
	case text == "💼 Register My Business" || text == "/registervendor":
		return d.Vendor.Begin(ctx, ev.UserID)
	case text == "🎁 My Referrals" || text == "/myreferrals":
		return d.sendReferralStats(ctx, ev.UserID)
	case text == "💳 Check My Wallet":
		return d.sendWallet(ctx, ev.UserID)
	case text == "🆘 Help" || text == "/help":
		return d.sendHelp(ctx, ev.UserID)
	case text == "/cancel" || text == "Cancel" || text == "Stop":
		// nothing in flight — acknowledging keeps cancel idempotent
		return d.Messenger.SendMessage(ctx, ev.UserID, "Nothing to cancel. You're all set!", &transport.SendOptions{Buttons: MainMenuButtons()})
	default:
		return d.Messenger.SendMessage(ctx, ev.UserID,
			"I didn't catch that. Please pick an option from the menu below.",
			&transport.SendOptions{Buttons: MainMenuButtons()})
	}
}

// handleStart resolves /start and its optional ref_<CODE> deep-link payload.
// An already-onboarded user short-circuits straight to the menu and never
// re-enters the machine.
func (d *Dispatcher) handleStart(ctx context.Context, userID, text string) error {
	user, err := d.Store.GetUser(ctx, userID)
	if err != nil {
		return d.Messenger.SendMessage(ctx, userID, "Sorry, there's a problem connecting to our services. Please try again later.", nil)
	}
	if user != nil && user.OnboardingCompleted {
		return d.Messenger.SendMessage(ctx, userID,
			fmt.Sprintf("Welcome back, %s!\nWhat would you like to do today?", user.Name),
			&transport.SendOptions{Buttons: MainMenuButtons()})
	}

	invited := false
	if payload, found := strings.CutPrefix(strings.TrimPrefix(text, "/start"), " ref_"); found {
		code := NormalizeCode(payload)
		if ValidFormat(code) {
			if err := d.Sessions.StashReferredBy(ctx, userID, code); err != nil {
				log.Printf("⚠️  Failed to stash referral code for %s: %v", userID, err)
			} else {
				invited = true
				log.Printf("User %s arrived via referral code %s", userID, code)
			}
		} else {
			log.Printf("User %s arrived with malformed referral payload %q, ignoring", userID, payload)
		}
	}

	welcome := "Welcome! 🌍💰\n\nI'm your assistant. To begin, tap Get Started — or learn more first."
	if invited {
		welcome = "Welcome! It looks like you were invited. Let's get you set up.\n\nTap Get Started to begin."
	}
	return d.Messenger.SendMessage(ctx, userID, welcome,
		&transport.SendOptions{Buttons: [][]string{{"🚀 Get Started"}, {"🆘 Help"}}, OneTime: true})
}

func (d *Dispatcher) beginOnboarding(ctx context.Context, userID string) error {
	user, err := d.Store.GetUser(ctx, userID)
	if err != nil {
		return d.Messenger.SendMessage(ctx, userID, "Service temporarily unavailable. Please try again later.", nil)
	}
	if user != nil && user.OnboardingCompleted {
		return d.Messenger.SendMessage(ctx, userID,
			fmt.Sprintf("Welcome back, %s! You're already set up.", user.Name),
			&transport.SendOptions{Buttons: MainMenuButtons()})
	}

	referredBy, err := d.Sessions.TakeReferredBy(ctx, userID)
	if err != nil {
		log.Printf("⚠️  Failed to read stashed referral code for %s: %v", userID, err)
		referredBy = ""
	}
	return d.Onboarding.Begin(ctx, userID, referredBy)
}

func (d *Dispatcher) sendHelp(ctx context.Context, userID string) error {
	msg := "🆘 Help\n\n" +
		"🚀 Get Started — set up your account and payout address\n" +
		"💳 Check My Wallet — see your tracked UBT balance\n" +
		"🎁 My Referrals — your referral code and invite stats\n" +
		"💼 Register My Business — submit your business for approval\n\n" +
		"Send /cancel at any point to stop what you're doing."
	return d.Messenger.SendMessage(ctx, userID, msg, &transport.SendOptions{Buttons: MainMenuButtons()})
}

func (d *Dispatcher) sendReferralStats(ctx context.Context, userID string) error {
	user, err := d.Store.GetUser(ctx, userID)
	if err != nil {
		return d.Messenger.SendMessage(ctx, userID, "Sorry, there's a problem fetching your referral data. Please try again later.", nil)
	}
	if user == nil || !user.OnboardingCompleted {
		return d.Messenger.SendMessage(ctx, userID, "I couldn't find your details. Have you completed the setup? Tap 🚀 Get Started first!", nil)
	}

	msg := fmt.Sprintf(
		"🌟 Your Referral Stats 🌟\n\n🙋 Friends Invited: %d\n💰 UBT Rewards Earned: %.2f UBT\n\n🔗 Your referral code: %s\n\nShare it with friends to earn rewards!",
		user.ReferralCount, user.EarnedBalance, user.ReferralCode)
	return d.Messenger.SendMessage(ctx, userID, msg, &transport.SendOptions{Buttons: MainMenuButtons()})
}

func (d *Dispatcher) sendWallet(ctx context.Context, userID string) error {
	user, err := d.Store.GetUser(ctx, userID)
	if err != nil {
		return d.Messenger.SendMessage(ctx, userID, "Sorry, there's a problem fetching your wallet. Please try again later.", nil)
	}
	if user == nil || !user.OnboardingCompleted {
		return d.Messenger.SendMessage(ctx, userID, "I couldn't find your details. Have you completed the setup? Tap 🚀 Get Started first!", nil)
	}

	payoutState := "not yet eligible for payout"
	if user.PayoutReady {
		payoutState = "eligible for the next monthly payout"
	}
	msg := fmt.Sprintf(
		"💳 Your Wallet\n\nTracked balance: %.2f UBT (%s)\nPayout address: %s",
		user.EarnedBalance, payoutState, user.PayoutAddress)
	return d.Messenger.SendMessage(ctx, userID, msg, &transport.SendOptions{Buttons: MainMenuButtons()})
}
