package models

import (
	"time"

	"github.com/google/uuid"
)

// TDSPolicy is the singleton tax-deduction-at-source configuration. Changing
// it affects only future withdrawal requests; existing requests keep the
// amounts captured at creation.
type TDSPolicy struct {
	ID         uint       `gorm:"primaryKey" json:"-"`
	Enabled    bool       `gorm:"default:false" json:"enabled"`
	Percentage float64    `gorm:"type:decimal(5,2);default:0" json:"percentage"`
	UpdatedAt  time.Time  `json:"updated_at"`
	UpdatedBy  *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
}

// TableName pins the singleton to a fixed table
func (TDSPolicy) TableName() string {
	return "tds_policy"
}
