// Package listing provides read access to demand and property listings and
// the aggregate queries feeding dashboard KPIs. Listing writes belong to the
// CRUD layer; the matching core only reads here.
package listing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/leasematch/leasematch/pkg/models"
)

// ErrNotFound is returned when a referenced listing id does not resolve.
var ErrNotFound = errors.New("listing not found")

// Reader is the listing read surface the matching core consumes.
type Reader interface {
	GetDemandListing(ctx context.Context, id uuid.UUID) (*models.DemandListing, error)
	GetPropertyListing(ctx context.Context, id uuid.UUID) (*models.PropertyListing, error)
	ListActivePropertiesByState(ctx context.Context, state string) ([]models.PropertyListing, error)
	ListActiveDemandsByState(ctx context.Context, state string) ([]models.DemandListing, error)
}

// AggregateReader is the per-user aggregate surface the KPI cache recomputes
// snapshots from.
type AggregateReader interface {
	CountActiveBusinesses(ctx context.Context, userID uuid.UUID) (int64, error)
	SumLandlordViews(ctx context.Context, userID uuid.UUID) (int64, error)
	CountMessages(ctx context.Context, userID uuid.UUID) (int64, error)
	CountInquiries(ctx context.Context, userID uuid.UUID) (int64, error)
	CountReplies(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Repository is the gorm-backed implementation of Reader and AggregateReader.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRepository creates a listing repository.
func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) GetDemandListing(ctx context.Context, id uuid.UUID) (*models.DemandListing, error) {
	var demand models.DemandListing
	if err := r.db.WithContext(ctx).First(&demand, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("demand listing %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load demand listing %s: %w", id, err)
	}
	return &demand, nil
}

func (r *Repository) GetPropertyListing(ctx context.Context, id uuid.UUID) (*models.PropertyListing, error) {
	var property models.PropertyListing
	if err := r.db.WithContext(ctx).First(&property, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("property listing %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load property listing %s: %w", id, err)
	}
	return &property, nil
}

// ListActivePropertiesByState bounds the candidate set for demand rescoring.
// Matching never evaluates an unfiltered cross-product.
func (r *Repository) ListActivePropertiesByState(ctx context.Context, state string) ([]models.PropertyListing, error) {
	var properties []models.PropertyListing
	err := r.db.WithContext(ctx).
		Where("status = ? AND state = ?", models.PropertyStatusActive, state).
		Find(&properties).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active properties for state %s: %w", state, err)
	}
	return properties, nil
}

func (r *Repository) ListActiveDemandsByState(ctx context.Context, state string) ([]models.DemandListing, error) {
	var demands []models.DemandListing
	err := r.db.WithContext(ctx).
		Where("status = ? AND state = ?", models.DemandStatusActive, state).
		Find(&demands).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active demands for state %s: %w", state, err)
	}
	return demands, nil
}

// ListActiveDemandsByOwner returns the user's active demand listings, for
// assembling dashboard state.
func (r *Repository) ListActiveDemandsByOwner(ctx context.Context, userID uuid.UUID) ([]models.DemandListing, error) {
	var demands []models.DemandListing
	err := r.db.WithContext(ctx).
		Where("status = ? AND owner_user_id = ?", models.DemandStatusActive, userID).
		Find(&demands).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list demands for owner %s: %w", userID, err)
	}
	return demands, nil
}

func (r *Repository) CountActiveBusinesses(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Business{}).
		Where("owner_user_id = ? AND status = ?", userID, "active").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active businesses: %w", err)
	}
	return count, nil
}

// SumLandlordViews totals the view counters across the user's property
// listings.
func (r *Repository) SumLandlordViews(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.PropertyListing{}).
		Where("landlord_id = ?", userID).
		Select("COALESCE(SUM(views), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum landlord views: %w", err)
	}
	return total, nil
}

func (r *Repository) CountMessages(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_user_id = ? OR recipient_user_id = ?", userID, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// CountInquiries counts first-contact messages received by the user.
func (r *Repository) CountInquiries(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_user_id = ? AND parent_message_id IS NULL", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count inquiries: %w", err)
	}
	return count, nil
}

// CountReplies counts messages the user sent in reply to another message.
func (r *Repository) CountReplies(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_user_id = ? AND parent_message_id IS NOT NULL", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count replies: %w", err)
	}
	return count, nil
}
