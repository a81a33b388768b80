package kvstore

import "errors"

// Record store error constants
var (
	// ErrRecordNotFound is returned when no record exists under the given key
	ErrRecordNotFound = errors.New("alert record not found")

	// ErrStoreUnavailable is returned when the record store cannot be reached
	ErrStoreUnavailable = errors.New("record store unavailable")
)
