package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"referral-rewards-system/models"

	"github.com/google/uuid"
)

var (
	// ErrCodeNotFound means the referral code resolves to nobody.
	ErrCodeNotFound = errors.New("referral code not found")
	// ErrCodeGeneration means we could not produce an unused code.
	ErrCodeGeneration = errors.New("failed to generate an unused referral code")
)

// Codes are canonical uppercase: UBT followed by 8 hex characters. Inbound
// codes are normalized once, at capture, and compared verbatim after that.
var codePattern = regexp.MustCompile(`^UBT[0-9A-F]{8}$`)

const codeGenerateAttempts = 5

// ReferralCodeRegistry generates and resolves referral codes. Pure
// lookup/generation — it never writes; the caller persists the code under the
// users table's unique index, so a lost generation race still surfaces as a
// constraint error there rather than a silent duplicate.
type ReferralCodeRegistry struct {
	Store RecordStore
}

func NewReferralCodeRegistry(store RecordStore) *ReferralCodeRegistry {
	return &ReferralCodeRegistry{Store: store}
}

// NormalizeCode canonicalizes an inbound code from a deep link or typed text.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidFormat reports whether code matches the canonical shape.
func ValidFormat(code string) bool {
	return codePattern.MatchString(code)
}

// Generate produces a fresh code and verifies it is unused. 8 hex chars of a
// v4 UUID make collisions unlikely enough that a handful of retries covers
// the rest.
func (r *ReferralCodeRegistry) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeGenerateAttempts; attempt++ {
		raw := strings.ReplaceAll(uuid.NewString(), "-", "")
		code := "UBT" + strings.ToUpper(raw[:8])

		existing, err := r.Store.FindUserByReferralCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("uniqueness check failed for %s: %w", code, err)
		}
		if existing == nil {
			return code, nil
		}
		log.Printf("referral code %s already taken, regenerating (attempt %d)", code, attempt+1)
	}
	return "", ErrCodeGeneration
}

// Resolve maps a code to its owning user, exact-match.
func (r *ReferralCodeRegistry) Resolve(ctx context.Context, code string) (*models.User, error) {
	if !ValidFormat(code) {
		return nil, ErrCodeNotFound
	}
	user, err := r.Store.FindUserByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrCodeNotFound
	}
	return user, nil
}
