package services

import (
	"context"
	"fmt"
	"log"

	"referral-rewards-system/models"

	"github.com/google/uuid"
)

// CreditOutcome is the result of a ledger credit attempt.
type CreditOutcome int

const (
	CreditFailed CreditOutcome = iota
	CreditApplied
	CreditAlreadyApplied
)

func (o CreditOutcome) String() string {
	switch o {
	case CreditApplied:
		return "applied"
	case CreditAlreadyApplied:
		return "already_applied"
	default:
		return "failed"
	}
}

// DedupKey identifies one reward event. The same key credits at most once,
// ever, no matter how often the triggering event is redelivered.
type DedupKey struct {
	BeneficiaryID    string
	Milestone        models.RewardMilestone
	TriggeringUserID string
}

// LedgerService applies reward credits to earned balances. AlreadyApplied is
// a normal outcome, never an error.
type LedgerService struct {
	Store RecordStore
}

func NewLedgerService(store RecordStore) *LedgerService {
	return &LedgerService{Store: store}
}

// Credit adds amount to the beneficiary's earned balance, at most once per
// dedup key. The balance can only grow: a non-positive amount is rejected
// before it reaches the store.
func (s *LedgerService) Credit(ctx context.Context, amount float64, key DedupKey) (CreditOutcome, error) {
	if amount <= 0 {
		return CreditFailed, fmt.Errorf("reward amount must be positive, got %v", amount)
	}

	credit := &models.RewardCredit{
		ID:               uuid.NewString(),
		BeneficiaryID:    key.BeneficiaryID,
		Milestone:        key.Milestone,
		TriggeringUserID: key.TriggeringUserID,
		Amount:           amount,
	}

	applied, err := s.Store.ApplyCredit(ctx, credit)
	if err != nil {
		return CreditFailed, err
	}
	if !applied {
		log.Printf("reward credit %s/%s/%s already applied, skipping", key.BeneficiaryID, key.Milestone, key.TriggeringUserID)
		return CreditAlreadyApplied, nil
	}
	return CreditApplied, nil
}
