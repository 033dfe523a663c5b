package models

import "time"

// VendorStatus indicates where a vendor sits in the approval pipeline.
// Status transitions after submission are owned by the approval process,
// not by this service.
type VendorStatus string

const (
	VendorStatusPendingApproval VendorStatus = "pending_approval"
	VendorStatusApproved        VendorStatus = "approved"
	VendorStatusRejected        VendorStatus = "rejected"
)

type VendorCategory string

const (
	VendorCategoryRetail        VendorCategory = "retail"
	VendorCategoryFoodDrinks    VendorCategory = "food_drinks"
	VendorCategoryTransport     VendorCategory = "transport"
	VendorCategoryAirtimeData   VendorCategory = "airtime_data"
	VendorCategoryFarming       VendorCategory = "farming"
	VendorCategoryServices      VendorCategory = "services"
	VendorCategoryAccommodation VendorCategory = "accommodation"
	VendorCategoryOther         VendorCategory = "other"
)

// VendorCategoryLabels maps each category to the button label shown in chat.
var VendorCategoryLabels = map[VendorCategory]string{
	VendorCategoryRetail:        "🛍️ Retail",
	VendorCategoryFoodDrinks:    "🍽️ Food & Drinks",
	VendorCategoryTransport:     "🚕 Transport",
	VendorCategoryAirtimeData:   "📞 Airtime/Data",
	VendorCategoryFarming:       "🌾 Farming",
	VendorCategoryServices:      "🛠️ Services",
	VendorCategoryAccommodation: "🏠 Accommodation",
	VendorCategoryOther:         "➕ Other",
}

// VendorCategoryOrder fixes the display order of the category keyboard.
var VendorCategoryOrder = []VendorCategory{
	VendorCategoryRetail,
	VendorCategoryFoodDrinks,
	VendorCategoryTransport,
	VendorCategoryAirtimeData,
	VendorCategoryFarming,
	VendorCategoryServices,
	VendorCategoryAccommodation,
	VendorCategoryOther,
}

// VendorCategoryFromLabel resolves a pressed button label back to its category.
func VendorCategoryFromLabel(label string) (VendorCategory, bool) {
	for cat, l := range VendorCategoryLabels {
		if l == label {
			return cat, true
		}
	}
	return "", false
}

// Vendor is a business submitted through the vendor registration flow.
// Created once per successful run, always in pending_approval.
type Vendor struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	OwnerUserID  string `gorm:"index;not null" json:"owner_user_id"`
	BusinessName string `gorm:"not null" json:"business_name"`
	Slug         string `gorm:"index" json:"slug"`

	Location   Location       `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Category   VendorCategory `gorm:"size:32;not null" json:"category"`
	PayoutInfo string         `gorm:"not null" json:"payout_info"` // wallet address or linked phone

	Status      VendorStatus `gorm:"size:32;not null;default:'pending_approval'" json:"status"`
	SubmittedAt time.Time    `gorm:"not null" json:"submitted_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
