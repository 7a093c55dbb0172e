package errors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinimumBalance = errors.New("balance below withdrawal minimum")
	ErrReferralAlreadySet  = errors.New("referrer already set")
	ErrSelfReferral        = errors.New("self referral not allowed")
	ErrOrderNotPayable     = errors.New("order is not awaiting payment")
)
