package assetdex

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped from API error codes.
// Use errors.Is() to check.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrAssetNotFound      = errors.New("asset not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// APIError is the decoded error body of a non-2xx response. It wraps
// the matching sentinel so errors.Is() works on the code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assetdex: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "validation_failed", "bad_request":
		if e.StatusCode == 401 {
			return ErrUnauthorized
		}
		return ErrValidation
	case "asset_not_found":
		return ErrAssetNotFound
	case "not_found":
		return ErrNotFound
	case "already_exists":
		return ErrAlreadyExists
	case "backend_unavailable":
		return ErrBackendUnavailable
	}
	return nil
}
