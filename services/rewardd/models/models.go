// Package models defines the persistence schema for the reward distribution
// daemon.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DistributionStatus tracks a distribution through its submission lifecycle.
type DistributionStatus string

// All distribution statuses. A record is created as submitted and moves to a
// terminal status as the two submission legs resolve.
const (
	StatusSubmitted       DistributionStatus = "submitted"
	StatusConfirmed       DistributionStatus = "confirmed"
	StatusPartiallyFailed DistributionStatus = "partiallyFailed"
	StatusFailed          DistributionStatus = "failed"
)

// DistributionRecord is written once per reward event and mutated only as
// submission outcomes resolve. Records are never deleted here; retention is a
// platform concern.
type DistributionRecord struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey"`
	EventID         string             `gorm:"uniqueIndex;size:128;not null"`
	IdempotencyKey  string             `gorm:"uniqueIndex;size:66"`
	Recipient       string             `gorm:"size:42;index"`
	UserTxHash      string             `gorm:"size:66"`
	PlatformTxHash  string             `gorm:"size:66"`
	UserShare       string             `gorm:"size:32"`
	PlatformShare   string             `gorm:"size:32"`
	CO2SavingsGrams int64
	Status          DistributionStatus `gorm:"size:32;index"`
	Degraded        bool
	FailureReason   string             `gorm:"size:1024"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
