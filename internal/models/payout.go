package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BankAccount holds a user's bank payout details
type BankAccount struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	User          User           `gorm:"foreignKey:UserID" json:"-"`
	AccountHolder string         `gorm:"type:varchar(100);not null" json:"account_holder"`
	AccountNumber string         `gorm:"type:varchar(30);not null" json:"account_number"`
	IFSCCode      string         `gorm:"type:varchar(15);not null" json:"ifsc_code"`
	BankName      string         `gorm:"type:varchar(100)" json:"bank_name"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate sets a UUID primary key if one was not supplied
func (b *BankAccount) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Snapshot copies the payout fields into a request-embedded map. Requests
// keep a copy, not a reference, so later edits to the account do not change
// where an already-created request pays out.
func (b *BankAccount) Snapshot() JSON {
	return JSON{
		"account_holder": b.AccountHolder,
		"account_number": b.AccountNumber,
		"ifsc_code":      b.IFSCCode,
		"bank_name":      b.BankName,
	}
}

// UPIHandle holds a user's UPI payout details
type UPIHandle struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	User      User           `gorm:"foreignKey:UserID" json:"-"`
	UPIID     string         `gorm:"type:varchar(100);not null" json:"upi_id"`
	Holder    string         `gorm:"type:varchar(100)" json:"holder"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate sets a UUID primary key if one was not supplied
func (u *UPIHandle) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Snapshot copies the payout fields into a request-embedded map
func (u *UPIHandle) Snapshot() JSON {
	return JSON{
		"upi_id": u.UPIID,
		"holder": u.Holder,
	}
}
