package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // internal cause, never sent to clients
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

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
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

// Codes of the ledger taxonomy.
const (
	CodeInvalidArgument = "WLT_400"
	CodeUnauthorized    = "WLT_401"
	CodeNotFound        = "WLT_404"
	CodeConflict        = "WLT_409"
	CodeRateLimited     = "RATE_001"
	CodeInternal        = "SYS_001"
	CodeUnavailable     = "SYS_002"
)

// ---- Ledger (WLT) ----

func NotFound(message string) *AppError {
	return New(CodeNotFound, message, http.StatusNotFound)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func InvalidArgument(message string) *AppError {
	return New(CodeInvalidArgument, message, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func ErrWalletNotFound(name string) *AppError {
	return NotFound(fmt.Sprintf("Wallet %s doesn't exist", name))
}

func ErrWalletExists(name string) *AppError {
	return Conflict(fmt.Sprintf("Wallet %s already exists", name))
}

func ErrInsufficientFunds(name string) *AppError {
	return Conflict(fmt.Sprintf("Not enough money in wallet %s", name))
}

func ErrDuplicateOperation() *AppError {
	return Conflict("Operation with given id has already been performed")
}

func ErrInvalidToken() *AppError {
	return Unauthorized("Invalid token")
}

func ErrInvalidCredentials() *AppError {
	return Unauthorized("Invalid wallet credentials")
}

// ErrContention is returned once the retry budget for a contended
// operation is spent.
func ErrContention(err error) *AppError {
	return Wrap(CodeConflict, "Operation conflicted with a concurrent request, retry later", http.StatusConflict, err)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrUnavailable(err error) *AppError {
	return Wrap(CodeUnavailable, "Service temporarily unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
