package apperrors

import "errors"

var (
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInvalidState        = errors.New("request is not in a state that allows this transition")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrBelowMinimum        = errors.New("amount is below the minimum withdrawal")
	ErrPayoutNotFound      = errors.New("no payout details found for the selected mode")
	ErrRequestNotFound     = errors.New("withdrawal request not found")
	ErrWalletNotFound      = errors.New("wallet not found")
)
