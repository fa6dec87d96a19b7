package tds

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/htams/backend/internal/apperrors"
	"github.com/htams/backend/internal/config"
	"github.com/htams/backend/internal/models"
	"github.com/htams/backend/internal/utils"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

// TDSService owns the singleton tax-deduction-at-source policy. Reads are
// cheap and default to a disabled policy; updates are admin-only and further
// gated by an operator passphrase and, when configured, a TOTP code.
type TDSService struct {
	db  *gorm.DB
	cfg config.WithdrawalConfig
}

// NewTDSService creates a new TDS policy service
func NewTDSService(db *gorm.DB, cfg config.WithdrawalConfig) *TDSService {
	return &TDSService{db: db, cfg: cfg}
}

// GetPolicy returns the current policy, or a disabled zero-percentage policy
// if none has ever been stored
func (s *TDSService) GetPolicy() (*models.TDSPolicy, error) {
	return s.GetPolicyWithTx(s.db)
}

// GetPolicyWithTx returns the current policy using an existing transaction so
// request creation snapshots the policy atomically with the debit
func (s *TDSService) GetPolicyWithTx(tx *gorm.DB) (*models.TDSPolicy, error) {
	var policy models.TDSPolicy
	if err := tx.First(&policy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.TDSPolicy{Enabled: false, Percentage: 0}, nil
		}
		return nil, fmt.Errorf("error loading TDS policy: %w", err)
	}
	return &policy, nil
}

// UpdatePolicy replaces the stored percentage. Only future withdrawal
// requests are affected; amounts captured on existing requests stay as they
// were at creation time.
func (s *TDSService) UpdatePolicy(percentage float64, adminID uuid.UUID, passphrase, totpCode string) (*models.TDSPolicy, error) {
	if percentage < 0 || percentage > 100 {
		return nil, apperrors.ErrInvalidInput
	}

	var admin models.User
	if err := s.db.First(&admin, "id = ?", adminID).Error; err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	if !admin.IsAdmin {
		return nil, apperrors.ErrUnauthorized
	}

	if s.cfg.OperatorPassphraseHash != "" {
		if !utils.CheckPasswordHash(passphrase, s.cfg.OperatorPassphraseHash) {
			return nil, apperrors.ErrUnauthorized
		}
	}

	if s.cfg.RequireTOTP {
		if admin.TOTPSecret == "" || !totp.Validate(totpCode, admin.TOTPSecret) {
			return nil, apperrors.ErrUnauthorized
		}
	}

	var policy models.TDSPolicy
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&policy).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("error loading TDS policy: %w", err)
			}
			policy = models.TDSPolicy{}
		}

		policy.Percentage = percentage
		policy.Enabled = percentage > 0
		policy.UpdatedAt = time.Now()
		policy.UpdatedBy = &adminID

		return tx.Save(&policy).Error
	})
	if err != nil {
		return nil, err
	}

	return &policy, nil
}
