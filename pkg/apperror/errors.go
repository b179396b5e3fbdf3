package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError independently of its wire code.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindAlreadyExists      Kind = "already_exists"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindBelowMinimum       Kind = "below_minimum"
	KindValidation         Kind = "validation"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthorized       Kind = "unauthorized"
	KindRateLimited        Kind = "rate_limited"
	KindConflict           Kind = "conflict"
	KindInconsistent       Kind = "inconsistent"
	KindInternal           Kind = "internal"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Kind       Kind   `json:"-"`
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// IsKind reports whether any AppError in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// ---- Catalog (CAT) ----

func ErrInstrumentNotFound() *AppError {
	return New(KindNotFound, "CAT_001", "Bond not found", http.StatusNotFound)
}

// ---- Wallet (WAL) ----

func ErrWalletNotFound() *AppError {
	return New(KindNotFound, "WAL_001", "Wallet not found", http.StatusNotFound)
}

func ErrInvalidAmount() *AppError {
	return New(KindValidation, "WAL_002", "Amount must be greater than zero", http.StatusBadRequest)
}

// ErrAmountOutOfRange rejects amounts the ledger cannot store exactly.
func ErrAmountOutOfRange() *AppError {
	return New(KindValidation, "WAL_003", "Amount must be below 100000000000000 with at most 6 decimal places", http.StatusBadRequest)
}

// ---- Purchases (PUR) ----

func ErrInsufficientFunds() *AppError {
	return New(KindInsufficientFunds, "PUR_001", "Insufficient USDC balance", http.StatusBadRequest)
}

// ErrBelowMinimum carries the instrument's minimum entry, already formatted.
func ErrBelowMinimum(minimum string) *AppError {
	return New(KindBelowMinimum, "PUR_002", fmt.Sprintf("Minimum entry is $%s", minimum), http.StatusBadRequest)
}

func ErrIdempotencyMismatch() *AppError {
	return New(KindConflict, "PUR_003", "Idempotency-Key was already used for a different purchase", http.StatusConflict)
}

// ErrInconsistent signals that a purchase's outcome could not be established.
func ErrInconsistent(err error) *AppError {
	return Wrap(KindInconsistent, "SYS_002", "Purchase outcome could not be verified", http.StatusInternalServerError, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New(KindInvalidCredentials, "AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New(KindAlreadyExists, "AUTH_002", "Email already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New(KindUnauthorized, "AUTH_003", "Invalid token", http.StatusUnauthorized)
}

func ErrTokenExpired() *AppError {
	return New(KindUnauthorized, "AUTH_004", "Token expired", http.StatusUnauthorized)
}

func ErrUnauthorized() *AppError {
	return New(KindUnauthorized, "AUTH_005", "Missing or malformed Authorization header", http.StatusUnauthorized)
}

func ErrUserNotFound() *AppError {
	return New(KindNotFound, "AUTH_006", "User not found", http.StatusNotFound)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimited, "RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Request (REQ) ----

// Validation returns a request validation error with the given message.
func Validation(message string) *AppError {
	return New(KindValidation, "REQ_001", message, http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, "SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
