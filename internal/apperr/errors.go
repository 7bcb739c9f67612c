// Package apperr defines the failure kinds every swap operation reports.
// Components wrap one of the sentinels with context so callers can branch
// with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidParameters   = errors.New("invalid parameters")
	ErrWalletUnavailable   = errors.New("wallet unavailable")
)

// Kind returns the sentinel err wraps, or nil when it wraps none.
func Kind(err error) error {
	for _, k := range []error{
		ErrNotFound,
		ErrInsufficientBalance,
		ErrUpstreamUnavailable,
		ErrInvalidParameters,
		ErrWalletUnavailable,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInsufficientBalance:
		return http.StatusUnprocessableEntity
	case ErrInvalidParameters:
		return http.StatusBadRequest
	case ErrUpstreamUnavailable:
		return http.StatusBadGateway
	case ErrWalletUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
