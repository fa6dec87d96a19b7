package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WithdrawalStatus is the lifecycle state of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusApproved  WithdrawalStatus = "approved"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
	WithdrawalStatusCancelled WithdrawalStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusApproved || s == WithdrawalStatusRejected || s == WithdrawalStatusCancelled
}

// PayoutMode selects which payout-detail sub-record is attached to a request
type PayoutMode string

const (
	PayoutModeBank PayoutMode = "bank"
	PayoutModeUPI  PayoutMode = "upi"
)

// WithdrawalRequest is one withdrawal attempt. The wallet is debited for
// GrossAmount when the request is created; approval finalizes the debit and
// reject/cancel credit the gross amount back. TDS figures are computed once
// from the policy in force at creation time and never recomputed.
type WithdrawalRequest struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	UserID           uuid.UUID        `gorm:"type:uuid;index" json:"user_id"`
	User             User             `gorm:"foreignKey:UserID" json:"-"`
	Reference        string           `gorm:"type:varchar(100);uniqueIndex" json:"reference"`
	GrossAmount      float64          `gorm:"type:decimal(20,2);not null" json:"gross_amount"`
	TDSApplied       bool             `gorm:"default:false" json:"tds_applied"`
	TDSPercentage    float64          `gorm:"type:decimal(5,2);default:0" json:"tds_percentage"`
	TDSAmount        float64          `gorm:"type:decimal(20,2);default:0" json:"tds_amount"`
	NetAmount        float64          `gorm:"type:decimal(20,2);not null" json:"net_amount"`
	Mode             PayoutMode       `gorm:"type:varchar(10);not null" json:"mode"`
	PayoutDetails    JSON             `gorm:"type:jsonb" json:"payout_details"`
	UserDetails      JSON             `gorm:"type:jsonb" json:"user_details"`
	Status           WithdrawalStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	RequestedAt      time.Time        `json:"requested_at"`
	ProcessedAt      *time.Time       `json:"processed_at"`
	ApprovedAt       *time.Time       `json:"approved_at"`
	RejectedAt       *time.Time       `json:"rejected_at"`
	CancelledAt      *time.Time       `json:"cancelled_at"`
	RejectionReason  string           `gorm:"type:text" json:"rejection_reason,omitempty"`
	RefundedToWallet bool             `gorm:"default:false" json:"refunded_to_wallet"`
	ProcessedBy      *uuid.UUID       `gorm:"type:uuid" json:"processed_by,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DeletedAt        gorm.DeletedAt   `gorm:"index" json:"-"`
}

// BeforeCreate sets a UUID primary key if one was not supplied
func (w *WithdrawalRequest) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// UserWithdrawalIndex is the per-user projection of a withdrawal request.
// Every write to WithdrawalRequest mutates the matching index row in the same
// database transaction so a user-scoped read always agrees with the global
// view (the dual-write invariant).
type UserWithdrawalIndex struct {
	RequestID   uuid.UUID        `gorm:"type:uuid;primary_key" json:"request_id"`
	UserID      uuid.UUID        `gorm:"type:uuid;index:idx_user_withdrawals" json:"user_id"`
	GrossAmount float64          `gorm:"type:decimal(20,2);not null" json:"gross_amount"`
	TDSAmount   float64          `gorm:"type:decimal(20,2);default:0" json:"tds_amount"`
	NetAmount   float64          `gorm:"type:decimal(20,2);not null" json:"net_amount"`
	Mode        PayoutMode       `gorm:"type:varchar(10);not null" json:"mode"`
	Status      WithdrawalStatus `gorm:"type:varchar(20);not null" json:"status"`
	RequestedAt time.Time        `json:"requested_at"`
	ProcessedAt *time.Time       `json:"processed_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
