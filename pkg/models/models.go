package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetType classifies the kind of space a tenant needs or a property offers.
// Demand listings and property listings share the same enum space.
type AssetType string

const (
	AssetTypeRetail     AssetType = "retail"
	AssetTypeRestaurant AssetType = "restaurant"
	AssetTypeOffice     AssetType = "office"
	AssetTypeIndustrial AssetType = "industrial"
	AssetTypeWarehouse  AssetType = "warehouse"
	AssetTypeMedical    AssetType = "medical"
	AssetTypeFlex       AssetType = "flex"
	AssetTypeLand       AssetType = "land"
	AssetTypeOther      AssetType = "other"
)

// DemandStatus is the lifecycle status of a demand listing.
type DemandStatus string

const (
	DemandStatusActive  DemandStatus = "active"
	DemandStatusPending DemandStatus = "pending"
	DemandStatusClosed  DemandStatus = "closed"
)

// PropertyStatus is the lifecycle status of a property listing.
// Only active properties are matchable.
type PropertyStatus string

const (
	PropertyStatusActive    PropertyStatus = "active"
	PropertyStatusPending   PropertyStatus = "pending"
	PropertyStatusLeased    PropertyStatus = "leased"
	PropertyStatusOffMarket PropertyStatus = "off_market"
)

// DemandListing is a tenant's posted space requirement. The CRUD layer owns
// writes; the matching core reads it only. sqft_min<=sqft_max and
// budget_min<=budget_max are enforced upstream.
type DemandListing struct {
	ID                  uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	BusinessID          uuid.UUID        `json:"business_id" gorm:"type:uuid;index" validate:"required,uuid"`
	OwnerUserID         uuid.UUID        `json:"owner_user_id" gorm:"type:uuid;index" validate:"required,uuid"`
	City                string           `json:"city" validate:"required,max=100"`
	State               string           `json:"state" gorm:"index" validate:"required,max=50"`
	AssetType           AssetType        `json:"asset_type" validate:"required,oneof=retail restaurant office industrial warehouse medical flex land other"`
	SqftMin             *int64           `json:"sqft_min,omitempty" validate:"omitempty,gt=0"`
	SqftMax             *int64           `json:"sqft_max,omitempty" validate:"omitempty,gt=0"`
	BudgetMin           *decimal.Decimal `json:"budget_min,omitempty" gorm:"type:numeric"` // monthly
	BudgetMax           *decimal.Decimal `json:"budget_max,omitempty" gorm:"type:numeric"` // monthly
	LotSizeMin          *float64         `json:"lot_size_min,omitempty" validate:"omitempty,gt=0"`
	LotSizeMax          *float64         `json:"lot_size_max,omitempty" validate:"omitempty,gt=0"`
	Amenities           []string         `json:"amenities" gorm:"serializer:json"`
	LocationsOfInterest []string         `json:"locations_of_interest" gorm:"serializer:json"`
	Status              DemandStatus     `json:"status" gorm:"index;default:active" validate:"required,oneof=active pending closed"`
	StealthMode         bool             `json:"stealth_mode"` // hides identifying details in listings; not read by matching
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// PropertyListing is a landlord's available space.
type PropertyListing struct {
	ID           uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	LandlordID   uuid.UUID        `json:"landlord_id" gorm:"type:uuid;index" validate:"required,uuid"`
	City         string           `json:"city" validate:"required,max=100"`
	State        string           `json:"state" gorm:"index" validate:"required,max=50"`
	PropertyType AssetType        `json:"property_type" validate:"required,oneof=retail restaurant office industrial warehouse medical flex land other"`
	Sqft         int64            `json:"sqft" validate:"required,gt=0"`
	AskingPrice  *decimal.Decimal `json:"asking_price,omitempty" gorm:"type:numeric"` // monthly; null means undisclosed
	Amenities    []string         `json:"amenities" gorm:"serializer:json"`
	Status       PropertyStatus   `json:"status" gorm:"index;default:active" validate:"required,oneof=active pending leased off_market"`
	StealthMode  bool             `json:"stealth_mode"`
	Views        int64            `json:"views"` // tenant view counter, incremented by the CRUD layer
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// LocationMatch records how the location sub-score fired.
type LocationMatch struct {
	SameCity        bool   `json:"same_city"`
	SameState       bool   `json:"same_state"`
	MatchedLocation string `json:"matched_location,omitempty"`
}

// RangeMatch records whether a numeric criterion fell inside the requested range.
type RangeMatch struct {
	InRange bool `json:"in_range"`
}

// AssetTypeMatch records how the asset-type sub-score fired.
type AssetTypeMatch struct {
	IsExactMatch   bool `json:"is_exact_match"`
	IsRelatedMatch bool `json:"is_related_match"`
}

// AmenityMatch records which requested amenities the property satisfied.
type AmenityMatch struct {
	Matched []string `json:"matched,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// MatchDetails is a closed record of which sub-criteria fired for a match.
// One optional field per sub-criterion; nil means the criterion did not apply
// (e.g. price_match is nil when the asking price is undisclosed).
type MatchDetails struct {
	Location  *LocationMatch  `json:"location_match,omitempty"`
	Sqft      *RangeMatch     `json:"sqft_match,omitempty"`
	Price     *RangeMatch     `json:"price_match,omitempty"`
	AssetType *AssetTypeMatch `json:"asset_type_match,omitempty"`
	Amenities *AmenityMatch   `json:"amenity_match,omitempty"`
}

// MatchRecord is the persisted outcome of scoring one demand listing against
// one property listing. At most one record exists per pair. Score fields are
// overwritten on every rescore; interaction flags are mutated only by tenant
// actions and survive rescoring.
type MatchRecord struct {
	ID                uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	DemandListingID   uuid.UUID    `json:"demand_listing_id" gorm:"type:uuid;uniqueIndex:uniq_match_pair;index"`
	PropertyListingID uuid.UUID    `json:"property_listing_id" gorm:"type:uuid;uniqueIndex:uniq_match_pair;index"`
	MatchScore        float64      `json:"match_score"` // 0-100, two-decimal precision
	LocationScore     float64      `json:"location_score"`
	SqftScore         float64      `json:"sqft_score"`
	PriceScore        float64      `json:"price_score"`
	AssetTypeScore    float64      `json:"asset_type_score"`
	AmenitiesScore    float64      `json:"amenities_score"`
	Details           MatchDetails `json:"match_details" gorm:"serializer:json"`
	IsViewed          bool         `json:"is_viewed"`
	ViewedAt          *time.Time   `json:"viewed_at,omitempty"`
	IsSaved           bool         `json:"is_saved"`
	SavedAt           *time.Time   `json:"saved_at,omitempty"`
	IsDismissed       bool         `json:"is_dismissed"`
	DismissedAt       *time.Time   `json:"dismissed_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Business is a tenant's or landlord's business profile. Owned by the CRUD
// layer; the core only counts them for dashboard KPIs.
type Business struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerUserID uuid.UUID `json:"owner_user_id" gorm:"type:uuid;index"`
	Name        string    `json:"name"`
	Status      string    `json:"status" gorm:"index;default:active"` // active, archived
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is a marketplace message between users. A non-nil ParentMessageID
// marks a reply; the reply/inquiry ratio feeds the response-rate KPI.
type Message struct {
	ID              uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	SenderUserID    uuid.UUID  `json:"sender_user_id" gorm:"type:uuid;index"`
	RecipientUserID uuid.UUID  `json:"recipient_user_id" gorm:"type:uuid;index"`
	Body            string     `json:"body"`
	ParentMessageID *uuid.UUID `json:"parent_message_id,omitempty" gorm:"type:uuid;index"`
	CreatedAt       time.Time  `json:"created_at"`
}

// KPISnapshot holds a user's aggregate dashboard metrics. Cache-only, never
// persisted; a derivable value with a computed-at timestamp.
type KPISnapshot struct {
	UserID           uuid.UUID `json:"user_id"`
	ActiveBusinesses int64     `json:"activeBusinesses"`
	ResponseRate     float64   `json:"responseRate"`
	LandlordViews    int64     `json:"landlordViews"`
	MessagesTotal    int64     `json:"messagesTotal"`
	ComputedAt       time.Time `json:"computed_at"`
}
