package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leasematch/leasematch/internal/listing"
	"github.com/leasematch/leasematch/pkg/models"
)

// ErrMatchNotFound is returned when a match id does not resolve to a record.
var ErrMatchNotFound = errors.New("match record not found")

// ListOptions filters a ranked match listing.
type ListOptions struct {
	ExcludeDismissed bool
	// IncludeRetired keeps matches whose property has left active status.
	// Retired matches are never deleted, only filtered at query time.
	IncludeRetired bool
	Limit          int
}

// Store persists match records. One row per (demand, property) pair, enforced
// by a unique constraint; concurrent inserts of the same pair converge to an
// update instead of a duplicate.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a match store.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Upsert inserts the score for a pair, or updates the score fields in place
// when the pair already exists. Interaction flags (viewed/saved/dismissed)
// are never written here, so rescoring cannot erase tenant history.
func (s *Store) Upsert(ctx context.Context, demandID, propertyID uuid.UUID, result MatchResult) (*models.MatchRecord, error) {
	if err := s.checkListingExists(ctx, "demand_listings", demandID); err != nil {
		return nil, err
	}
	if err := s.checkListingExists(ctx, "property_listings", propertyID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := models.MatchRecord{
		ID:                uuid.New(),
		DemandListingID:   demandID,
		PropertyListingID: propertyID,
		MatchScore:        result.Composite,
		LocationScore:     result.Location,
		SqftScore:         result.Sqft,
		PriceScore:        result.Price,
		AssetTypeScore:    result.AssetType,
		AmenitiesScore:    result.Amenities,
		Details:           result.Details,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "demand_listing_id"}, {Name: "property_listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"match_score", "location_score", "sqft_score", "price_score",
			"asset_type_score", "amenities_score", "details", "updated_at",
		}),
	}).Create(&record).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert match %s/%s: %w", demandID, propertyID, err)
	}

	// The conflict path keeps the original row id, so read the pair back.
	var stored models.MatchRecord
	err = s.db.WithContext(ctx).
		First(&stored, "demand_listing_id = ? AND property_listing_id = ?", demandID, propertyID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to reload match %s/%s: %w", demandID, propertyID, err)
	}
	return &stored, nil
}

func (s *Store) checkListingExists(ctx context.Context, table string, id uuid.UUID) error {
	var count int64
	if err := s.db.WithContext(ctx).Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to resolve %s id %s: %w", table, id, err)
	}
	if count == 0 {
		return fmt.Errorf("%s id %s: %w", table, id, listing.ErrNotFound)
	}
	return nil
}

// Get returns a match record by id.
func (s *Store) Get(ctx context.Context, matchID uuid.UUID) (*models.MatchRecord, error) {
	var record models.MatchRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
		}
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	return &record, nil
}

// MarkViewed sets is_viewed. Idempotent: a second call returns the current
// state without touching the stored timestamp.
func (s *Store) MarkViewed(ctx context.Context, matchID uuid.UUID) (*models.MatchRecord, error) {
	return s.setFlag(ctx, matchID, "is_viewed", "viewed_at", func(r *models.MatchRecord) bool { return r.IsViewed })
}

// MarkSaved sets is_saved. Idempotent.
func (s *Store) MarkSaved(ctx context.Context, matchID uuid.UUID) (*models.MatchRecord, error) {
	return s.setFlag(ctx, matchID, "is_saved", "saved_at", func(r *models.MatchRecord) bool { return r.IsSaved })
}

// MarkDismissed sets is_dismissed. The record stays on disk for audit but is
// excluded from active match listings. Idempotent.
func (s *Store) MarkDismissed(ctx context.Context, matchID uuid.UUID) (*models.MatchRecord, error) {
	return s.setFlag(ctx, matchID, "is_dismissed", "dismissed_at", func(r *models.MatchRecord) bool { return r.IsDismissed })
}

func (s *Store) setFlag(ctx context.Context, matchID uuid.UUID, flagCol, atCol string, isSet func(*models.MatchRecord) bool) (*models.MatchRecord, error) {
	record, err := s.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if isSet(record) {
		return record, nil
	}
	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Model(&models.MatchRecord{}).
		Where("id = ?", matchID).
		Updates(map[string]interface{}{flagCol: true, atCol: now, "updated_at": now}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to set %s on match %s: %w", flagCol, matchID, err)
	}
	return s.Get(ctx, matchID)
}

// DemandOwner pairs a demand listing with its owning user, for retirement
// notifications.
type DemandOwner struct {
	DemandListingID uuid.UUID
	OwnerUserID     uuid.UUID
}

// AffectedDemandOwners returns the demands (and their owners) holding a match
// against the given property.
func (s *Store) AffectedDemandOwners(ctx context.Context, propertyID uuid.UUID) ([]DemandOwner, error) {
	var owners []DemandOwner
	err := s.db.WithContext(ctx).Model(&models.MatchRecord{}).
		Select("match_records.demand_listing_id AS demand_listing_id, demand_listings.owner_user_id AS owner_user_id").
		Joins("JOIN demand_listings ON demand_listings.id = match_records.demand_listing_id").
		Where("match_records.property_listing_id = ?", propertyID).
		Scan(&owners).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list affected demands for property %s: %w", propertyID, err)
	}
	return owners, nil
}

// ListForDemand returns the demand's matches ordered by score descending,
// ties broken by most recently created first so newer listings surface first
// on equal score.
func (s *Store) ListForDemand(ctx context.Context, demandID uuid.UUID, opts ListOptions) ([]models.MatchRecord, error) {
	query := s.db.WithContext(ctx).Model(&models.MatchRecord{}).
		Where("match_records.demand_listing_id = ?", demandID)
	if opts.ExcludeDismissed {
		query = query.Where("match_records.is_dismissed = ?", false)
	}
	if !opts.IncludeRetired {
		query = query.
			Joins("JOIN property_listings ON property_listings.id = match_records.property_listing_id").
			Where("property_listings.status = ?", models.PropertyStatusActive)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var records []models.MatchRecord
	err := query.Order("match_records.match_score DESC, match_records.created_at DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for demand %s: %w", demandID, err)
	}
	return records, nil
}
