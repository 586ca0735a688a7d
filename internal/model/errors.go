package model

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state")
	ErrDuplicateApplication = errors.New("you have already applied for this job")
	ErrAlreadyReviewed      = errors.New("contract already reviewed")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrQuotaExceeded        = errors.New("job posting quota exceeded for subscription")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidAmount        = errors.New("bid amount must be positive")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrConflict             = errors.New("concurrent modification")
)
