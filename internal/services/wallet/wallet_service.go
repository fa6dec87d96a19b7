package wallet

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/htams/backend/internal/apperrors"
	"github.com/htams/backend/internal/models"
	"github.com/htams/backend/internal/utils"
	"gorm.io/gorm"
)

// MutationResult reports the balances around a committed mutation, for audit
// embedding in request snapshots and ledger entries
type MutationResult struct {
	WalletID      uuid.UUID
	BalanceBefore float64
	BalanceAfter  float64
	LedgerEntryID uuid.UUID
}

// WalletService handles wallet operations. Every balance change is a
// conditional update keyed on the stored value, never a blind overwrite, so
// concurrent debits from the same user cannot jointly overdraw the wallet.
type WalletService struct {
	db *gorm.DB
}

// NewWalletService creates a new wallet service
func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{db: db}
}

// GetOrCreateWallet gets a user's wallet or creates one if it doesn't exist
func (s *WalletService) GetOrCreateWallet(userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet

	err := s.db.Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error finding wallet: %w", err)
	}

	wallet = models.Wallet{
		UserID:  userID,
		Balance: 0,
	}

	if err := s.db.Create(&wallet).Error; err != nil {
		return nil, fmt.Errorf("error creating wallet: %w", err)
	}

	return &wallet, nil
}

// GetWallet gets a user's wallet
func (s *WalletService) GetWallet(userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("error finding wallet: %w", err)
	}
	return &wallet, nil
}

// Debit removes funds from a user's wallet
func (s *WalletService) Debit(userID uuid.UUID, amount float64, entryType, reference, description string, metadata map[string]interface{}) (*MutationResult, error) {
	var result *MutationResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.DebitWithTx(tx, userID, amount, entryType, reference, description, metadata)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DebitWithTx removes funds from a user's wallet inside an existing
// transaction. The balance check and decrement are one conditional UPDATE:
// if another debit drained the wallet first, zero rows match and the caller
// observes ErrInsufficientBalance with no state change.
func (s *WalletService) DebitWithTx(tx *gorm.DB, userID uuid.UUID, amount float64, entryType, reference, description string, metadata map[string]interface{}) (*MutationResult, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidInput
	}

	wallet, err := s.lockedWallet(tx, userID)
	if err != nil {
		return nil, err
	}

	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", wallet.ID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return nil, fmt.Errorf("error updating wallet balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrInsufficientBalance
	}

	balanceBefore := wallet.Balance
	balanceAfter := utils.Round2(wallet.Balance - amount)

	entry := models.LedgerEntry{
		WalletID:      wallet.ID,
		Type:          entryType,
		Amount:        -amount, // negative for debit
		Reference:     reference,
		Description:   description,
		MetaData:      metadata,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("error creating ledger entry: %w", err)
	}

	return &MutationResult{
		WalletID:      wallet.ID,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		LedgerEntryID: entry.ID,
	}, nil
}

// Credit adds funds to a user's wallet
func (s *WalletService) Credit(userID uuid.UUID, amount float64, entryType, reference, description string, metadata map[string]interface{}) (*MutationResult, error) {
	var result *MutationResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.CreditWithTx(tx, userID, amount, entryType, reference, description, metadata)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CreditWithTx adds funds to a user's wallet inside an existing transaction.
// Credits have no upper bound check and always succeed for a valid amount.
func (s *WalletService) CreditWithTx(tx *gorm.DB, userID uuid.UUID, amount float64, entryType, reference, description string, metadata map[string]interface{}) (*MutationResult, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidInput
	}

	wallet, err := s.lockedWallet(tx, userID)
	if err != nil {
		return nil, err
	}

	res := tx.Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return nil, fmt.Errorf("error updating wallet balance: %w", res.Error)
	}

	balanceBefore := wallet.Balance
	balanceAfter := utils.Round2(wallet.Balance + amount)

	entry := models.LedgerEntry{
		WalletID:      wallet.ID,
		Type:          entryType,
		Amount:        amount,
		Reference:     reference,
		Description:   description,
		MetaData:      metadata,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("error creating ledger entry: %w", err)
	}

	return &MutationResult{
		WalletID:      wallet.ID,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		LedgerEntryID: entry.ID,
	}, nil
}

// GetLedger gets ledger entries for a user's wallet, newest first
func (s *WalletService) GetLedger(userID uuid.UUID, page, pageSize int) ([]models.LedgerEntry, int64, error) {
	wallet, err := s.GetWallet(userID)
	if err != nil {
		return nil, 0, err
	}

	var entries []models.LedgerEntry
	var total int64

	if err := s.db.Model(&models.LedgerEntry{}).Where("wallet_id = ?", wallet.ID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting ledger entries: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := s.db.Where("wallet_id = ?", wallet.ID).Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding ledger entries: %w", err)
	}

	return entries, total, nil
}

// lockedWallet loads a wallet row under the transaction's row lock
func (s *WalletService) lockedWallet(tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := tx.Set("gorm:query_option", "FOR UPDATE").Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("error finding wallet: %w", err)
	}
	return &wallet, nil
}
