package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Ledger errors
	ErrInsufficientBalance = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("credit amount must be a non-negative integer")
	ErrUnknownActionKind   = errors.New("unknown credit action")
	ErrInvalidMultiplier   = errors.New("multiplier must be zero or greater")
	ErrAccountNotFound     = errors.New("ledger account not found")

	// Account errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidOrgCode     = errors.New("invalid organization code")
	ErrMissingFields      = errors.New("all fields are required")

	// Report errors
	ErrReportNotFound        = errors.New("report not found")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrInvalidDisposalMethod = errors.New("invalid disposal method")

	// Photo errors
	ErrNotAnImage    = errors.New("only image files are allowed")
	ErrPhotoTooLarge = errors.New("file too large")
	ErrPhotoNotFound = errors.New("photo not found")
)
