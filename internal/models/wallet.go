package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet represents a user's spendable balance. The balance already reflects
// reservations: creating a withdrawal request debits it immediately, so the
// withdrawable amount is simply the balance itself.
type Wallet struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	User      User           `gorm:"foreignKey:UserID" json:"-"`
	Balance   float64        `gorm:"type:decimal(20,2);default:0" json:"balance"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate sets a UUID primary key if one was not supplied
func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// Ledger entry types
const (
	LedgerTypeWithdrawalReserve = "withdrawal_reserve"
	LedgerTypeWithdrawalRefund  = "withdrawal_refund"
	LedgerTypeCredit            = "credit"
	LedgerTypeAdjustment        = "adjustment"
)

// LedgerEntry records a single wallet balance mutation with the balance
// before and after, for audit and reconciliation
type LedgerEntry struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	WalletID      uuid.UUID `gorm:"type:uuid;index" json:"wallet_id"`
	Wallet        Wallet    `gorm:"foreignKey:WalletID" json:"-"`
	Type          string    `gorm:"type:varchar(50);not null" json:"type"`
	Amount        float64   `gorm:"type:decimal(20,2);not null" json:"amount"` // negative for debits
	Reference     string    `gorm:"type:varchar(100);index" json:"reference"`
	Description   string    `gorm:"type:text" json:"description"`
	MetaData      JSON      `gorm:"type:jsonb" json:"metadata"`
	BalanceBefore float64   `gorm:"type:decimal(20,2)" json:"balance_before"`
	BalanceAfter  float64   `gorm:"type:decimal(20,2)" json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// BeforeCreate sets a UUID primary key if one was not supplied
func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
