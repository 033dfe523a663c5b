package services

import (
	"context"
	"testing"
	"time"

	"referral-rewards-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	sessions, _ := newTestSessions(t)
	ctx := context.Background()

	sess := &Session{
		UserID:      "u1",
		Flow:        FlowOnboarding,
		State:       StateAwaitingLocation,
		Name:        "Jane Wanjiku",
		PhoneNumber: "+254712345678",
		Location:    models.Location{Kind: models.LocationKindGPS, Latitude: -1.2921, Longitude: 36.8219},
		StartedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, sessions.Put(ctx, sess))

	got, err := sessions.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.Flow, got.Flow)
	assert.Equal(t, sess.State, got.State)
	assert.Equal(t, sess.Name, got.Name)
	assert.Equal(t, sess.Location, got.Location)
	assert.True(t, sess.StartedAt.Equal(got.StartedAt))
}

func TestSessionGetMissingReturnsNil(t *testing.T) {
	sessions, _ := newTestSessions(t)

	sess, err := sessions.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSessionDeleteIsIdempotent(t *testing.T) {
	sessions, _ := newTestSessions(t)
	ctx := context.Background()

	require.NoError(t, sessions.Put(ctx, &Session{UserID: "u1", Flow: FlowVendor, State: StateAwaitingBusinessName}))
	require.NoError(t, sessions.Delete(ctx, "u1"))
	require.NoError(t, sessions.Delete(ctx, "u1"))

	sess, err := sessions.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSessionExpiresAfterIdleTTL(t *testing.T) {
	sessions, mr := newTestSessions(t)
	ctx := context.Background()

	require.NoError(t, sessions.Put(ctx, &Session{UserID: "u1", Flow: FlowOnboarding, State: StateAwaitingName}))

	mr.FastForward(2 * time.Hour)

	sess, err := sessions.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, sess, "an abandoned session expires instead of lingering")
}

func TestReferredByStash(t *testing.T) {
	sessions, mr := newTestSessions(t)
	ctx := context.Background()

	t.Run("take clears the stash", func(t *testing.T) {
		require.NoError(t, sessions.StashReferredBy(ctx, "u1", "UBT1234ABCD"))

		code, err := sessions.TakeReferredBy(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "UBT1234ABCD", code)

		code, err = sessions.TakeReferredBy(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, code)
	})

	t.Run("empty stash is not an error", func(t *testing.T) {
		code, err := sessions.TakeReferredBy(ctx, "u2")
		require.NoError(t, err)
		assert.Empty(t, code)
	})

	t.Run("stash expires with the idle TTL", func(t *testing.T) {
		require.NoError(t, sessions.StashReferredBy(ctx, "u3", "UBT1234ABCD"))
		mr.FastForward(2 * time.Hour)

		code, err := sessions.TakeReferredBy(ctx, "u3")
		require.NoError(t, err)
		assert.Empty(t, code)
	})
}
