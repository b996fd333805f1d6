package service

import "errors"

// Domain errors returned as typed outcomes so the presentation layer can
// give precise feedback. Infrastructure failures are wrapped and surfaced
// separately.
var (
	// ErrNumberUnavailable means the requested number does not exist or is
	// already held; the user should re-list and pick another.
	ErrNumberUnavailable = errors.New("number unavailable")

	// ErrNoActiveRequest means the user has no live reservation for the
	// number; the user should start over.
	ErrNoActiveRequest = errors.New("no active number request")

	// ErrInsufficientPoints means the balance does not cover the charge.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrUserNotFound means the referenced account is unknown or banned.
	ErrUserNotFound = errors.New("user not found")

	// ErrCodeInvalid means a PRO voucher is unknown, disabled, or spent.
	ErrCodeInvalid = errors.New("invalid or used code")

	// ErrAlreadyClaimed means the daily bonus was already collected today.
	ErrAlreadyClaimed = errors.New("bonus already claimed today")

	// ErrSelfTransfer rejects sending points to oneself.
	ErrSelfTransfer = errors.New("cannot transfer points to yourself")

	// ErrNotPro gates PRO-only features.
	ErrNotPro = errors.New("pro subscription required")
)
