package withdrawal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/htams/backend/internal/apperrors"
	"github.com/htams/backend/internal/config"
	"github.com/htams/backend/internal/events"
	"github.com/htams/backend/internal/models"
	"github.com/htams/backend/internal/services/tds"
	"github.com/htams/backend/internal/services/wallet"
	"github.com/htams/backend/internal/utils"
	"gorm.io/gorm"
)

// WithdrawalService drives the request lifecycle. Creating a request debits
// the wallet in the same database transaction that writes the request and its
// per-user index row, so there is no window where funds left the wallet
// without a matching record. Transitions out of pending are compare-and-set
// updates: whichever of approve/reject/cancel commits first wins and the
// loser observes ErrInvalidState.
type WithdrawalService struct {
	db        *gorm.DB
	cfg       config.WithdrawalConfig
	walletSvc *wallet.WalletService
	tdsSvc    *tds.TDSService
	publisher events.Publisher
}

// NewWithdrawalService creates a new withdrawal lifecycle service
func NewWithdrawalService(db *gorm.DB, cfg config.WithdrawalConfig, walletSvc *wallet.WalletService, tdsSvc *tds.TDSService, publisher events.Publisher) *WithdrawalService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &WithdrawalService{
		db:        db,
		cfg:       cfg,
		walletSvc: walletSvc,
		tdsSvc:    tdsSvc,
		publisher: publisher,
	}
}

// Create opens a new withdrawal request in pending state. The gross amount is
// debited immediately: the debit is the reservation, which is what stops a
// user from issuing several pending requests that jointly exceed the balance.
func (s *WithdrawalService) Create(userID uuid.UUID, grossAmount float64, mode models.PayoutMode) (*models.WithdrawalRequest, error) {
	grossAmount = utils.Round2(grossAmount)
	if grossAmount <= 0 {
		return nil, apperrors.ErrInvalidInput
	}
	if grossAmount < s.cfg.MinimumAmount {
		return nil, fmt.Errorf("%w: minimum is %.2f", apperrors.ErrBelowMinimum, s.cfg.MinimumAmount)
	}
	if mode != models.PayoutModeBank && mode != models.PayoutModeUPI {
		return nil, apperrors.ErrInvalidInput
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}

	payoutDetails, err := s.payoutSnapshot(userID, mode)
	if err != nil {
		return nil, err
	}

	reference := utils.GenerateReference("WDR")

	var request models.WithdrawalRequest
	err = s.db.Transaction(func(tx *gorm.DB) error {
		policy, err := s.tdsSvc.GetPolicyWithTx(tx)
		if err != nil {
			return err
		}

		tdsAmount := 0.0
		if policy.Enabled {
			tdsAmount = utils.Round2(grossAmount * policy.Percentage / 100)
		}
		netAmount := utils.Round2(grossAmount - tdsAmount)

		previousWithdrawn, previousPending, err := s.userTotals(tx, userID)
		if err != nil {
			return err
		}

		mutation, err := s.walletSvc.DebitWithTx(tx, userID, grossAmount,
			models.LedgerTypeWithdrawalReserve, reference,
			"withdrawal request reservation", nil)
		if err != nil {
			return err
		}

		now := time.Now()
		request = models.WithdrawalRequest{
			UserID:        userID,
			Reference:     reference,
			GrossAmount:   grossAmount,
			TDSApplied:    policy.Enabled,
			TDSPercentage: policy.Percentage,
			TDSAmount:     tdsAmount,
			NetAmount:     netAmount,
			Mode:          mode,
			PayoutDetails: payoutDetails,
			UserDetails: models.JSON{
				"name":               user.Name,
				"email":              user.Email,
				"mobile":             user.Mobile,
				"previous_withdrawn": previousWithdrawn,
				"previous_pending":   previousPending,
				"balance_before":     mutation.BalanceBefore,
				"balance_after":      mutation.BalanceAfter,
			},
			Status:      models.WithdrawalStatusPending,
			RequestedAt: now,
		}

		if err := tx.Create(&request).Error; err != nil {
			return fmt.Errorf("error creating withdrawal request: %w", err)
		}

		index := models.UserWithdrawalIndex{
			RequestID:   request.ID,
			UserID:      userID,
			GrossAmount: grossAmount,
			TDSAmount:   tdsAmount,
			NetAmount:   netAmount,
			Mode:        mode,
			Status:      models.WithdrawalStatusPending,
			RequestedAt: now,
		}

		if err := tx.Create(&index).Error; err != nil {
			return fmt.Errorf("error creating withdrawal index entry: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.WithdrawalCreated, request)
	return &request, nil
}

// Approve finalizes a pending request. Funds were already removed at
// creation, so approval touches no wallet balance.
func (s *WithdrawalService) Approve(requestID, adminID uuid.UUID) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest

	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		res := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", requestID, models.WithdrawalStatusPending).
			Updates(map[string]interface{}{
				"status":       models.WithdrawalStatusApproved,
				"approved_at":  now,
				"processed_at": now,
				"processed_by": adminID,
			})
		if res.Error != nil {
			return fmt.Errorf("error approving withdrawal: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.transitionConflict(tx, requestID)
		}

		if err := s.updateIndex(tx, requestID, models.WithdrawalStatusApproved, &now); err != nil {
			return err
		}

		return tx.First(&request, "id = ?", requestID).Error
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.WithdrawalApproved, request)
	return &request, nil
}

// Reject declines a pending request and credits the full gross amount back
// to the wallet. The TDS portion was never remitted, so the refund is gross,
// not net.
func (s *WithdrawalService) Reject(requestID, adminID uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	if reason == "" {
		return nil, apperrors.ErrInvalidInput
	}

	request, err := s.refundingTransition(requestID, &adminID, models.WithdrawalStatusRejected, reason)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.WithdrawalRejected, request)
	return request, nil
}

// Cancel withdraws a pending request and credits the gross amount back.
// Admins may cancel any pending request; a user may only cancel their own.
func (s *WithdrawalService) Cancel(requestID, actorID uuid.UUID, actorIsAdmin bool) (*models.WithdrawalRequest, error) {
	if !actorIsAdmin {
		var owned int64
		if err := s.db.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND user_id = ?", requestID, actorID).
			Count(&owned).Error; err != nil {
			return nil, fmt.Errorf("error checking request ownership: %w", err)
		}
		if owned == 0 {
			return nil, apperrors.ErrUnauthorized
		}
	}

	request, err := s.refundingTransition(requestID, &actorID, models.WithdrawalStatusCancelled, "")
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.WithdrawalCancelled, request)
	return request, nil
}

// Get loads a request from the global view
func (s *WithdrawalService) Get(requestID uuid.UUID) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	if err := s.db.First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, fmt.Errorf("error finding withdrawal request: %w", err)
	}
	return &request, nil
}

// GetUserView loads the per-user projection of a request
func (s *WithdrawalService) GetUserView(requestID uuid.UUID) (*models.UserWithdrawalIndex, error) {
	var index models.UserWithdrawalIndex
	if err := s.db.First(&index, "request_id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, fmt.Errorf("error finding withdrawal index entry: %w", err)
	}
	return &index, nil
}

// ListForUser lists a user's requests from the per-user projection, newest
// first
func (s *WithdrawalService) ListForUser(userID uuid.UUID, page, pageSize int) ([]models.UserWithdrawalIndex, int64, error) {
	var entries []models.UserWithdrawalIndex
	var total int64

	if err := s.db.Model(&models.UserWithdrawalIndex{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting withdrawals: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := s.db.Where("user_id = ?", userID).Order("requested_at DESC").Offset(offset).Limit(pageSize).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("error listing withdrawals: %w", err)
	}

	return entries, total, nil
}

// refundingTransition is the shared reject/cancel path: CAS the status in
// both views and credit the wallet exactly once, all in one transaction.
func (s *WithdrawalService) refundingTransition(requestID uuid.UUID, actorID *uuid.UUID, target models.WithdrawalStatus, reason string) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var current models.WithdrawalRequest
		if err := tx.First(&current, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrRequestNotFound
			}
			return fmt.Errorf("error finding withdrawal request: %w", err)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":             target,
			"processed_at":       now,
			"processed_by":       actorID,
			"refunded_to_wallet": true,
		}
		switch target {
		case models.WithdrawalStatusRejected:
			updates["rejected_at"] = now
			updates["rejection_reason"] = reason
		case models.WithdrawalStatusCancelled:
			updates["cancelled_at"] = now
		default:
			return apperrors.ErrInvalidState
		}

		res := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", requestID, models.WithdrawalStatusPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("error updating withdrawal request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// The guard above saw the row, so this is a lost race, not a
			// missing record
			return apperrors.ErrInvalidState
		}

		if err := s.updateIndex(tx, requestID, target, &now); err != nil {
			return err
		}

		refundType := models.LedgerTypeWithdrawalRefund
		if _, err := s.walletSvc.CreditWithTx(tx, current.UserID, current.GrossAmount,
			refundType, current.Reference,
			fmt.Sprintf("refund for %s withdrawal request", target), nil); err != nil {
			return err
		}

		return tx.First(&request, "id = ?", requestID).Error
	})
	if err != nil {
		return nil, err
	}

	return &request, nil
}

// transitionConflict distinguishes a missing request from a lost
// compare-and-set race after a zero-row transition update
func (s *WithdrawalService) transitionConflict(tx *gorm.DB, requestID uuid.UUID) error {
	var count int64
	if err := tx.Model(&models.WithdrawalRequest{}).Where("id = ?", requestID).Count(&count).Error; err != nil {
		return fmt.Errorf("error checking withdrawal request: %w", err)
	}
	if count == 0 {
		return apperrors.ErrRequestNotFound
	}
	return apperrors.ErrInvalidState
}

// updateIndex mirrors a status transition onto the per-user projection within
// the same transaction, keeping both views in lockstep
func (s *WithdrawalService) updateIndex(tx *gorm.DB, requestID uuid.UUID, status models.WithdrawalStatus, processedAt *time.Time) error {
	res := tx.Model(&models.UserWithdrawalIndex{}).
		Where("request_id = ?", requestID).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": processedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("error updating withdrawal index entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("withdrawal index entry missing for request %s", requestID)
	}
	return nil
}

// payoutSnapshot copies the user's payout details for the selected mode into
// the request record
func (s *WithdrawalService) payoutSnapshot(userID uuid.UUID, mode models.PayoutMode) (models.JSON, error) {
	switch mode {
	case models.PayoutModeBank:
		var account models.BankAccount
		if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrPayoutNotFound
			}
			return nil, fmt.Errorf("error finding bank account: %w", err)
		}
		return account.Snapshot(), nil
	case models.PayoutModeUPI:
		var handle models.UPIHandle
		if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").First(&handle).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrPayoutNotFound
			}
			return nil, fmt.Errorf("error finding UPI handle: %w", err)
		}
		return handle.Snapshot(), nil
	}
	return nil, apperrors.ErrInvalidInput
}

// userTotals computes the previously-withdrawn and currently-pending gross
// sums captured in the request's audit snapshot
func (s *WithdrawalService) userTotals(tx *gorm.DB, userID uuid.UUID) (float64, float64, error) {
	var withdrawn, pending float64

	err := tx.Model(&models.WithdrawalRequest{}).
		Where("user_id = ? AND status = ?", userID, models.WithdrawalStatusApproved).
		Select("COALESCE(SUM(gross_amount), 0)").Scan(&withdrawn).Error
	if err != nil {
		return 0, 0, fmt.Errorf("error summing withdrawn amounts: %w", err)
	}

	err = tx.Model(&models.WithdrawalRequest{}).
		Where("user_id = ? AND status = ?", userID, models.WithdrawalStatusPending).
		Select("COALESCE(SUM(gross_amount), 0)").Scan(&pending).Error
	if err != nil {
		return 0, 0, fmt.Errorf("error summing pending amounts: %w", err)
	}

	return withdrawn, pending, nil
}
