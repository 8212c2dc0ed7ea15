package domain

import "errors"

// Every rejection maps to exactly one category so callers can tell a bad
// request from a bad state from a custody bug. Operations abort with no
// partial effects.
var (
	// validation: rejected before any state change
	ErrInvalidPrice        = errors.New("price must be positive")
	ErrInvalidDuration     = errors.New("duration out of accepted bounds")
	ErrArityMismatch       = errors.New("batch arrays length mismatch")
	ErrSelfTrade           = errors.New("self trade not allowed")
	ErrPayTokenNotAccepted = errors.New("pay token not accepted")
	ErrContractNotAccepted = errors.New("asset contract not accepted")
	ErrEmptyBatch          = errors.New("empty batch")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrBadParamInput       = errors.New("given param is not valid")

	// unauthorized
	ErrUnauthorized = errors.New("caller is not allowed to perform this operation")

	// state: entity exists but is not in a state accepting the operation
	ErrNotFound        = errors.New("requested item is not found")
	ErrNotActive       = errors.New("entity is not active")
	ErrAlreadyResolved = errors.New("entity has already been resolved")
	ErrExpired         = errors.New("entity has expired")
	ErrNotStarted      = errors.New("entity has not started")
	ErrNotEnded        = errors.New("auction has not ended")
	ErrHasBids         = errors.New("auction already received a bid")
	ErrAlreadyEscrowed = errors.New("asset already under escrow")
	ErrReentrantCall   = errors.New("reentrant call")

	// payment
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPaymentMismatch   = errors.New("payment does not match required amount")
	ErrTransferFailed    = errors.New("transfer failed")

	// signature
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNonceUsed        = errors.New("authorization nonce already consumed")

	// config
	ErrFeeTooHigh            = errors.New("fee rate exceeds upper bound")
	ErrInvalidDurationBounds = errors.New("min duration must be lower than max duration")

	// custody: internal bug signal, never reachable from external input alone
	ErrCustodyViolation = errors.New("custody invariant violation")
)

// ErrorCategory buckets sentinel errors per the engine's error taxonomy.
type ErrorCategory string

const (
	CategoryValidation   ErrorCategory = "validation"
	CategoryUnauthorized ErrorCategory = "unauthorized"
	CategoryState        ErrorCategory = "state"
	CategoryPayment      ErrorCategory = "payment"
	CategorySignature    ErrorCategory = "signature"
	CategoryCustody      ErrorCategory = "custody"
	CategoryInternal     ErrorCategory = "internal"
)

func Categorize(err error) ErrorCategory {
	switch {
	case errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrArityMismatch),
		errors.Is(err, ErrSelfTrade),
		errors.Is(err, ErrPayTokenNotAccepted),
		errors.Is(err, ErrContractNotAccepted),
		errors.Is(err, ErrEmptyBatch),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrFeeTooHigh),
		errors.Is(err, ErrInvalidDurationBounds),
		errors.Is(err, ErrBadParamInput):
		return CategoryValidation
	case errors.Is(err, ErrUnauthorized):
		return CategoryUnauthorized
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNotActive),
		errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrNotStarted),
		errors.Is(err, ErrNotEnded),
		errors.Is(err, ErrHasBids),
		errors.Is(err, ErrAlreadyEscrowed),
		errors.Is(err, ErrReentrantCall):
		return CategoryState
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrPaymentMismatch),
		errors.Is(err, ErrTransferFailed):
		return CategoryPayment
	case errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrNonceUsed):
		return CategorySignature
	case errors.Is(err, ErrCustodyViolation):
		return CategoryCustody
	}
	return CategoryInternal
}
