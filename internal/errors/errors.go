package errors

import (
	"errors"
	"net/http"

	"rfxlicense/internal/domain"
)

// Sentinel errors for the license lifecycle. Services return these and the
// transport layer maps them onto HTTP status codes and reason strings; they
// never cross the client/server boundary as unstructured text.
var (
	ErrFormatInvalid     = errors.New("license key format invalid")
	ErrKeyNotFound       = errors.New("license key not found")
	ErrInactive          = errors.New("license inactive")
	ErrExpired           = errors.New("license expired")
	ErrWrongAccount      = errors.New("license bound to different account")
	ErrPaymentUnverified = errors.New("payment not verified")
	ErrTrialAlreadyUsed  = errors.New("trial already used")
	ErrAlreadyDecided    = errors.New("payment request already decided")
	ErrAlreadyPending    = errors.New("payment request already pending")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
)

// Reason maps a service error to its reason code: the wire-level
// verification reasons plus slugs for the lifecycle errors used in problem
// type URIs. Unknown errors collapse to server_error so storage failures
// can never leak as a verdict.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrFormatInvalid):
		return domain.ReasonFormatInvalid
	case errors.Is(err, ErrKeyNotFound):
		return domain.ReasonKeyNotFound
	case errors.Is(err, ErrInactive):
		return domain.ReasonInactive
	case errors.Is(err, ErrExpired):
		return domain.ReasonExpired
	case errors.Is(err, ErrWrongAccount):
		return domain.ReasonWrongAccount
	case errors.Is(err, ErrPaymentUnverified):
		return domain.ReasonPaymentUnverified
	case errors.Is(err, ErrTrialAlreadyUsed):
		return "trial_already_used"
	case errors.Is(err, ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, ErrAlreadyPending):
		return "payment_already_pending"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return domain.ReasonServerError
	}
}

// StatusCode maps a service error to the HTTP status the verify endpoint
// answers with, so clients can dispatch on status without parsing the body.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrFormatInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPaymentUnverified):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrInactive), errors.Is(err, ErrWrongAccount), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	case errors.Is(err, ErrTrialAlreadyUsed), errors.Is(err, ErrAlreadyDecided), errors.Is(err, ErrAlreadyPending):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
