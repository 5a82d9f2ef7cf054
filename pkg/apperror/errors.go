package apperror

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
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
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Authentication & Authorization (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbiddenRole() *AppError {
	return New("AUTH_003", "Insufficient role for this operation", http.StatusForbidden)
}

// ---- Webhook Security (SEC) ----

func ErrInvalidWebhookSignature() *AppError {
	return New("SEC_001", "Webhook signature verification failed", http.StatusOK)
}

// ---- Payout Business Logic (PO) ----
// Each payout precondition failure carries its own code so the merchant can
// tell whether to wait, verify KYC, add a bank account, or reduce the amount.

func ErrKYCNotVerified() *AppError {
	return New("PO_001", "Merchant KYC verification is required before requesting payouts", http.StatusForbidden)
}

func ErrWithdrawalsBlocked(until *time.Time) *AppError {
	msg := "Withdrawals are blocked for this merchant"
	if until != nil {
		msg = fmt.Sprintf("Withdrawals are blocked until %s", until.UTC().Format(time.RFC3339))
	}
	return New("PO_002", msg, http.StatusForbidden)
}

func ErrBankAccountNotVerified() *AppError {
	return New("PO_003", "Bank account is missing, not owned by this merchant, or not verified", http.StatusUnprocessableEntity)
}

func ErrBelowMinimumWithdrawal(minimum int64) *AppError {
	return New("PO_004", fmt.Sprintf("Amount is below the minimum withdrawal of %d", minimum), http.StatusUnprocessableEntity)
}

func ErrInsufficientBalance() *AppError {
	return New("PO_005", "Insufficient available balance", http.StatusUnprocessableEntity)
}

func ErrPayoutStateConflict(current string) *AppError {
	return New("PO_006", fmt.Sprintf("Payout request is %s; operation requires a different state", current), http.StatusConflict)
}

func ErrRejectionReasonRequired() *AppError {
	return New("PO_007", "A rejection reason is mandatory", http.StatusBadRequest)
}

// ---- Resources (RES) ----

func ErrNotFound(entity string) *AppError {
	return New("RES_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a generic request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
