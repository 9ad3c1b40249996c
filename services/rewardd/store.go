package rewardd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"greenmile/services/rewardd/models"
)

// Records persists distribution outcomes. The engine writes one record per
// reward event and mutates only its status fields; everything else is
// immutable after creation.
type Records struct {
	db *gorm.DB
}

// NewRecords wraps a gorm handle.
func NewRecords(db *gorm.DB) *Records {
	return &Records{db: db}
}

// Migrate creates or updates the distribution schema.
func (r *Records) Migrate() error {
	return r.db.AutoMigrate(&models.DistributionRecord{})
}

// Create inserts a fresh record. The event id carries a unique index, so a
// duplicate insert for the same event fails rather than double-recording.
func (r *Records) Create(ctx context.Context, record *models.DistributionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("rewardd: create distribution record: %w", err)
	}
	return nil
}

// Save persists status mutations on an existing record.
func (r *Records) Save(ctx context.Context, record *models.DistributionRecord) error {
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("rewardd: update distribution record: %w", err)
	}
	return nil
}

// FindByEventID returns the record for an event, or (nil, nil) when none
// exists.
func (r *Records) FindByEventID(ctx context.Context, eventID string) (*models.DistributionRecord, error) {
	var record models.DistributionRecord
	err := r.db.WithContext(ctx).First(&record, "event_id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rewardd: load distribution record: %w", err)
	}
	return &record, nil
}

// PartiallyFailed lists records needing operator reconciliation: the user
// share settled but the platform share did not.
func (r *Records) PartiallyFailed(ctx context.Context) ([]models.DistributionRecord, error) {
	var records []models.DistributionRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", models.StatusPartiallyFailed).
		Order("created_at asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("rewardd: list partial failures: %w", err)
	}
	return records, nil
}
