package services

import (
	"context"
	"errors"
	"fmt"

	"referral-rewards-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordStore is the persistence contract the flows and the ledger run
// against. It is injected everywhere — nothing in this package reaches for a
// global DB handle — so the whole core is testable against any backend that
// honors the atomicity notes below.
type RecordStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	PutUser(ctx context.Context, user *models.User) error
	FindUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	IncrementUserReferralCount(ctx context.Context, id string) error
	SetUserVendorRegistered(ctx context.Context, id string) error

	// ApplyCredit inserts the ledger row and moves the balance in one
	// transaction. The insert is conditional on the dedup key; when the key
	// already exists nothing happens and applied is false.
	ApplyCredit(ctx context.Context, credit *models.RewardCredit) (applied bool, err error)

	CreateVendor(ctx context.Context, vendor *models.Vendor) (string, error)
	GetVendor(ctx context.Context, id string) (*models.Vendor, error)
	CountVendorsByStatus(ctx context.Context, status models.VendorStatus) (int64, error)
}

// GormStore is the production RecordStore over Postgres (or sqlite in tests).
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return &user, nil
}

// PutUser upserts with merge semantics: an existing row is overwritten with
// the fully assembled record, a missing row is created.
func (s *GormStore) PutUser(ctx context.Context, user *models.User) error {
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(user).Error
	if err != nil {
		return fmt.Errorf("failed to persist user %s: %w", user.ID, err)
	}
	return nil
}

func (s *GormStore) FindUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "referral_code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up referral code %s: %w", code, err)
	}
	return &user, nil
}

func (s *GormStore) IncrementUserReferralCount(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("referral_count", gorm.Expr("referral_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment referral count for %s: %w", id, err)
	}
	return nil
}

func (s *GormStore) SetUserVendorRegistered(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("vendor_registered", true).Error
	if err != nil {
		return fmt.Errorf("failed to set vendor_registered for %s: %w", id, err)
	}
	return nil
}

func (s *GormStore) ApplyCredit(ctx context.Context, credit *models.RewardCredit) (bool, error) {
	applied := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "beneficiary_id"},
				{Name: "milestone"},
				{Name: "triggering_user_id"},
			},
			DoNothing: true,
		}).Create(credit)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// dedup key already applied — leave the balance alone
			return nil
		}
		applied = true

		// Balance moves as a SQL delta so concurrent credits to the same
		// beneficiary serialize at the store, never at the application layer.
		return tx.Model(&models.User{}).
			Where("id = ?", credit.BeneficiaryID).
			Updates(map[string]any{
				"earned_balance": gorm.Expr("earned_balance + ?", credit.Amount),
				"payout_ready":   gorm.Expr("earned_balance + ? > 0", credit.Amount),
			}).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply reward credit: %w", err)
	}
	return applied, nil
}

func (s *GormStore) CreateVendor(ctx context.Context, vendor *models.Vendor) (string, error) {
	if err := s.DB.WithContext(ctx).Create(vendor).Error; err != nil {
		return "", fmt.Errorf("failed to create vendor %q: %w", vendor.BusinessName, err)
	}
	return vendor.ID, nil
}

func (s *GormStore) GetVendor(ctx context.Context, id string) (*models.Vendor, error) {
	var vendor models.Vendor
	err := s.DB.WithContext(ctx).First(&vendor, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vendor %s: %w", id, err)
	}
	return &vendor, nil
}

func (s *GormStore) CountVendorsByStatus(ctx context.Context, status models.VendorStatus) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Vendor{}).
		Where("status = ?", status).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count vendors with status %s: %w", status, err)
	}
	return count, nil
}
