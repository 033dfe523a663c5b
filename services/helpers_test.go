package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"referral-rewards-system/models"
	"referral-rewards-system/transport"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// a single connection keeps the in-memory database alive and serializes
	// concurrent writers the way the production store's transactions do
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Vendor{},
		&models.RewardCredit{},
	))
	return db
}

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	return NewGormStore(newTestDB(t))
}

func newTestSessions(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewSessionStore(client, time.Hour), mr
}

// seedOnboardedUser writes a completed user straight into the store.
func seedOnboardedUser(t *testing.T, store *GormStore, id, code string) *models.User {
	t.Helper()

	user := &models.User{
		ID:                  id,
		Name:                "User " + id,
		PhoneNumber:         "+254700000000",
		Location:            models.Location{Kind: models.LocationKindText, Text: "Nairobi"},
		PayoutAddress:       "0x" + repeatHex(40),
		ReferralCode:        code,
		OnboardingCompleted: true,
	}
	require.NoError(t, store.PutUser(context.Background(), user))
	return user
}

func repeatHex(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = "0123456789abcdef"[i%16]
	}
	return string(out)
}

type sentMessage struct {
	UserID string
	Text   string
	Opts   *transport.SendOptions
}

// fakeMessenger records everything the core asks the transport to do.
type fakeMessenger struct {
	mu              sync.Mutex
	Messages        []sentMessage
	ContactPrompts  []sentMessage
	LocationPrompts []sentMessage
	Rewards         []transport.RewardNotification
	NotifyErr       error
}

func (f *fakeMessenger) SendMessage(_ context.Context, userID, text string, opts *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = append(f.Messages, sentMessage{UserID: userID, Text: text, Opts: opts})
	return nil
}

func (f *fakeMessenger) PromptForContact(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ContactPrompts = append(f.ContactPrompts, sentMessage{UserID: userID, Text: text})
	return nil
}

func (f *fakeMessenger) PromptForLocation(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LocationPrompts = append(f.LocationPrompts, sentMessage{UserID: userID, Text: text})
	return nil
}

func (f *fakeMessenger) NotifyReward(_ context.Context, n transport.RewardNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NotifyErr != nil {
		return f.NotifyErr
	}
	f.Rewards = append(f.Rewards, n)
	return nil
}

func (f *fakeMessenger) lastMessageTo(userID string) (sentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Messages) - 1; i >= 0; i-- {
		if f.Messages[i].UserID == userID {
			return f.Messages[i], true
		}
	}
	return sentMessage{}, false
}

// newTestRig wires the full service graph over fresh test backends.
type testRig struct {
	Store       *GormStore
	Sessions    *SessionStore
	Redis       *miniredis.Miniredis
	Registry    *ReferralCodeRegistry
	Ledger      *LedgerService
	Attribution *AttributionService
	Onboarding  *OnboardingService
	Vendor      *VendorFlowService
	Dispatcher  *Dispatcher
	Messenger   *fakeMessenger
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	store := newTestStore(t)
	sessions, mr := newTestSessions(t)
	msgr := &fakeMessenger{}

	registry := NewReferralCodeRegistry(store)
	ledger := NewLedgerService(store)
	policy := RewardPolicy{SignupReward: 10, VendorRegistrationBonus: 3}
	attribution := NewAttributionService(store, registry, ledger, msgr, policy)
	onboarding := NewOnboardingService(store, sessions, registry, attribution, msgr)
	vendor := NewVendorFlowService(store, sessions, attribution, msgr, "admin-1")
	dispatcher := NewDispatcher(store, sessions, onboarding, vendor, msgr)

	return &testRig{
		Store:       store,
		Sessions:    sessions,
		Redis:       mr,
		Registry:    registry,
		Ledger:      ledger,
		Attribution: attribution,
		Onboarding:  onboarding,
		Vendor:      vendor,
		Dispatcher:  dispatcher,
		Messenger:   msgr,
	}
}

func textEvent(userID, text string) transport.InputEvent {
	return transport.InputEvent{UserID: userID, Kind: transport.EventText, Text: text}
}
