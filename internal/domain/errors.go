package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned on primary-key conflicts.
	ErrAlreadyExists = errors.New("already exists")

	// ErrClaimLost means a conditional status write matched zero rows:
	// another instance transitioned the row first, or the deadline filter
	// excluded it. Callers skip without error.
	ErrClaimLost = errors.New("claim lost")

	// ErrNoViableSize means no candidate trade size cleared the minimum
	// profit threshold. This is "no plan", not a failure.
	ErrNoViableSize = errors.New("no viable trade size")

	// ErrBundleNotIncluded means inclusion polling exhausted its attempts.
	ErrBundleNotIncluded = errors.New("bundle not included within attempts")

	ErrRateLimited = errors.New("rate limited")
)
