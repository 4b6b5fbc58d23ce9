package apperrors

import (
	"net/http"
)

// =========================================================================
// Factories wrapping lower level errors
// =========================================================================

// ErrNotFound converts a repository "not found" error into a 404.
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrAlreadyExists converts a uniqueness violation into a 409.
func ErrAlreadyExists(err error) *AppError {
	return Wrap(err, CodeAlreadyExists, "resource", "Resource already exists", http.StatusConflict)
}

func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

func ErrInvalidOperation(domain, message string) *AppError {
	return New(CodeInvalidOperation, domain, message, http.StatusBadRequest)
}

// =========================================================================
// Auth
// =========================================================================

var ErrInvalidUserRole = New(
	CodeInvalidOperation,
	"auth",
	"Invalid user role for this operation",
	http.StatusBadRequest,
)

var ErrWeakPassword = New(
	CodeValidationFailed,
	"validation",
	"Password is too weak. Minimum 8 characters required.",
	http.StatusBadRequest,
)

var ErrEmailAlreadyExists = New(
	CodeAlreadyExists,
	"auth",
	"Email already in use",
	http.StatusConflict,
)

var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusUnauthorized,
)

var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)

var ErrSchoolNameRequired = New(
	CodeValidationFailed,
	"validation",
	"School name is required for school administrators",
	http.StatusBadRequest,
)

// =========================================================================
// Uploads & OCR
// =========================================================================

var ErrTempStorageUnavailable = New(
	CodeInternalError,
	"upload",
	"Failed to prepare upload directory",
	http.StatusInternalServerError,
)

var ErrInvalidUploadForm = New(
	CodeInternalError,
	"upload",
	"Failed to process upload request",
	http.StatusInternalServerError,
)

var ErrUploadNotFound = New(
	CodeNotFound,
	"upload",
	"Upload not found",
	http.StatusNotFound,
)

// =========================================================================
// Subscriptions
// =========================================================================

var ErrSubscriptionNotFound = New(
	CodeNotFound,
	"subscription",
	"Subscription not found",
	http.StatusNotFound,
)

var ErrInvalidSubscriptionOwner = New(
	CodeValidationFailed,
	"subscription",
	"Subscription must belong to exactly one user or school",
	http.StatusBadRequest,
)
