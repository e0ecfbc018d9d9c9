package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAssetNotFound signals a missing asset.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation signals malformed input, rejected before any tier runs.
	ErrValidation = errors.New("validation failed")
	// ErrBackendUnavailable signals a primary-store failure. Fatal to a search.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	// ErrInferenceFailed signals an inference-provider failure. Never fatal
	// to a search; the semantic tier degrades to zero results instead.
	ErrInferenceFailed = errors.New("inference failed")
	// ErrInvalidTransition signals a classification status update that the
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)
