package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientData  = errors.New("insufficient price data")
	ErrSafetyRejected    = errors.New("rejected by vault safety gate")
	ErrQualityRejected   = errors.New("rejected by scoring thresholds")
	ErrConflict          = errors.New("another deal is active")
	ErrInvalidTransition = errors.New("invalid deal state transition")
	ErrInvalidListing    = errors.New("invalid listing")
	ErrLockHeld          = errors.New("lock already held")
	ErrStoreCorrupted    = errors.New("deal store corrupted")
)
