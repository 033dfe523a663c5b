package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"referral-rewards-system/models"

	"github.com/redis/go-redis/v9"
)

// FlowKind names the conversational flow a session belongs to. A user has at
// most one live session at a time.
type FlowKind string

const (
	FlowOnboarding FlowKind = "onboarding"
	FlowVendor     FlowKind = "vendor"
)

// Session is the strongly-typed record of one in-progress flow, owned
// exclusively by that user's state machine. It is created on flow entry,
// destroyed on terminal success or cancel, and expires after the idle TTL so
// abandoned conversations don't pile up.
type Session struct {
	UserID string   `json:"user_id"`
	Flow   FlowKind `json:"flow"`
	State  string   `json:"state"`

	// onboarding answers
	Name           string          `json:"name,omitempty"`
	PhoneNumber    string          `json:"phone_number,omitempty"`
	Location       models.Location `json:"location,omitempty"`
	PayoutAddress  string          `json:"payout_address,omitempty"`
	ReferredByCode string          `json:"referred_by_code,omitempty"`

	// vendor answers
	BusinessName string                `json:"business_name,omitempty"`
	Category     models.VendorCategory `json:"category,omitempty"`
	PayoutInfo   string                `json:"payout_info,omitempty"`

	StartedAt time.Time `json:"started_at"`
}

// SessionStore keeps live sessions in Redis, JSON-encoded, one key per user.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(userID string) string  { return "session:" + userID }
func refStashKey(userID string) string { return "refstash:" + userID }

// Get returns the user's live session, or nil when no flow is active.
func (s *SessionStore) Get(ctx context.Context, userID string) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session for %s: %w", userID, err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session for %s: %w", userID, err)
	}
	return &sess, nil
}

// Put writes the session and refreshes its idle TTL.
func (s *SessionStore) Put(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session for %s: %w", sess.UserID, err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.UserID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session for %s: %w", sess.UserID, err)
	}
	return nil
}

// Delete destroys the session. Deleting a session that is already gone is a
// no-op, which is what makes cancel idempotent.
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	return nil
}

// StashReferredBy remembers the referral code captured from a deep link until
// the user actually presses the begin button. Same idle TTL as sessions.
func (s *SessionStore) StashReferredBy(ctx context.Context, userID, code string) error {
	if err := s.client.Set(ctx, refStashKey(userID), code, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to stash referral code for %s: %w", userID, err)
	}
	return nil
}

// TakeReferredBy returns and clears the stashed referral code, if any.
func (s *SessionStore) TakeReferredBy(ctx context.Context, userID string) (string, error) {
	code, err := s.client.GetDel(ctx, refStashKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to take referral code for %s: %w", userID, err)
	}
	return code, nil
}
