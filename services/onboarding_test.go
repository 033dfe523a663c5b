package services

import (
	"context"
	"testing"

	"referral-rewards-system/models"
	"referral-rewards-system/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contactEvent(userID, phone string) transport.InputEvent {
	return transport.InputEvent{
		UserID:  userID,
		Kind:    transport.EventContact,
		Contact: &transport.Contact{PhoneNumber: phone},
	}
}

func locationEvent(userID string, lat, lon float64) transport.InputEvent {
	return transport.InputEvent{
		UserID:   userID,
		Kind:     transport.EventLocation,
		Location: &transport.GeoPoint{Latitude: lat, Longitude: lon},
	}
}

const validPayoutAddress = "0xabcdefABCDEF0123456789abcdefABCDEF012345"

// runOnboarding drives a user through the full flow via the dispatcher.
func runOnboarding(t *testing.T, rig *testRig, userID string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent(userID, "🚀 Get Started")))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent(userID, "Jane Wanjiku")))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent(userID, "+254712345678")))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent(userID, "Mombasa")))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent(userID, validPayoutAddress)))
}

func TestOnboardingHappyPath(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	runOnboarding(t, rig, "u1")

	user, err := rig.Store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.OnboardingCompleted)
	assert.Equal(t, "Jane Wanjiku", user.Name)
	assert.Equal(t, "+254712345678", user.PhoneNumber)
	assert.Equal(t, models.LocationKindText, user.Location.Kind)
	assert.Equal(t, "Mombasa", user.Location.Text)
	assert.Equal(t, validPayoutAddress, user.PayoutAddress)
	assert.True(t, ValidFormat(user.ReferralCode))
	assert.Equal(t, 0.0, user.EarnedBalance)
	assert.Equal(t, int64(0), user.ReferralCount)

	// terminal success destroys the session
	sess, err := rig.Sessions.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestOnboardingValidationKeepsState(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "🚀 Get Started")))

	t.Run("name too short re-prompts", func(t *testing.T) {
		require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "J")))
		sess, err := rig.Sessions.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingName, sess.State)
	})

	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "Jane Wanjiku")))

	t.Run("invalid phone re-prompts", func(t *testing.T) {
		require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "not a phone")))
		sess, err := rig.Sessions.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingPhone, sess.State)
	})

	t.Run("typed phone without plus gets one prepended", func(t *testing.T) {
		require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "254712345678")))
		sess, err := rig.Sessions.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "+254712345678", sess.PhoneNumber)
		assert.Equal(t, StateAwaitingLocation, sess.State)
	})

	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "Kisumu")))

	t.Run("short payout address keeps state and persists nothing", func(t *testing.T) {
		require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "0xabc")))

		sess, err := rig.Sessions.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingPayoutAddress, sess.State)

		user, err := rig.Store.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("valid payout address completes", func(t *testing.T) {
		require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", validPayoutAddress)))
		user, err := rig.Store.GetUser(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.True(t, user.OnboardingCompleted)
	})
}

func TestOnboardingIgnoresCommandsAsAnswers(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "🚀 Get Started")))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "/myreferrals")))

	sess, err := rig.Sessions.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, StateAwaitingName, sess.State)
	assert.Empty(t, sess.Name, "a command must not be stored as the name")

	// a real answer still advances
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "Jane Wanjiku")))
	sess, err = rig.Sessions.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPhone, sess.State)
}

func TestOnboardingAcceptsStructuredPayloads(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "🚀 Get Started")))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "Jane Wanjiku")))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, contactEvent("u1", "+254700111222")))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, locationEvent("u1", -1.2921, 36.8219)))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", validPayoutAddress)))

	user, err := rig.Store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "+254700111222", user.PhoneNumber)
	assert.Equal(t, models.LocationKindGPS, user.Location.Kind)
	assert.InDelta(t, -1.2921, user.Location.Latitude, 1e-9)
	assert.InDelta(t, 36.8219, user.Location.Longitude, 1e-9)
}

func TestOnboardingCancellation(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "🚀 Get Started")))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "Jane Wanjiku")))
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "+254712345678")))

	// cancel mid-flow, at the location step
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "/cancel")))

	sess, err := rig.Sessions.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, sess)

	user, err := rig.Store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, user, "no record and no referral code for a cancelled run")

	// cancelling again is a no-op
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "/cancel")))
}

func TestOnboardingWithoutReferralMakesNoCredits(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	runOnboarding(t, rig, "x")

	var credits int64
	require.NoError(t, rig.Store.DB.Model(&models.RewardCredit{}).Count(&credits).Error)
	assert.Zero(t, credits)

	user, err := rig.Store.GetUser(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.ReferralCount)
}

func TestOnboardingReferredSignupRewardsReferrerExactlyOnce(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	// X is already onboarded; Y arrives through X's link
	runOnboarding(t, rig, "x")
	x, err := rig.Store.GetUser(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("y", "/start ref_"+x.ReferralCode)))
	runOnboarding(t, rig, "y")

	x, err = rig.Store.GetUser(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 10.0, x.EarnedBalance)
	assert.Equal(t, int64(1), x.ReferralCount)
	assert.True(t, x.PayoutReady)

	// the transport redelivers Y's completion event
	y, err := rig.Store.GetUser(ctx, "y")
	require.NoError(t, err)
	require.NoError(t, rig.Attribution.Attribute(ctx, y, models.MilestoneReferralSignup))

	x, err = rig.Store.GetUser(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 10.0, x.EarnedBalance, "redelivery must not double-credit")
	assert.Equal(t, int64(1), x.ReferralCount)
}

func TestOnboardedUserShortCircuitsStart(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	runOnboarding(t, rig, "u1")
	require.NoError(t, rig.Dispatcher.Dispatch(ctx, textEvent("u1", "/start")))

	sess, err := rig.Sessions.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, sess, "a returning user never re-enters the machine")

	msg, ok := rig.Messenger.lastMessageTo("u1")
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Welcome back")
}
