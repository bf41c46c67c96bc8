package domain

import "time"

// Reason codes returned to the polling client when a verification fails.
// These are wire-level values; clients dispatch on them, so they never change.
const (
	ReasonFormatInvalid      = "format_invalid"
	ReasonKeyNotFound        = "key_not_found"
	ReasonInactive           = "inactive"
	ReasonExpired            = "expired"
	ReasonWrongAccount       = "wrong_account"
	ReasonPaymentUnverified  = "payment_unverified"
	ReasonServerError        = "server_error"
)

// VerificationResult is the response body of the verify endpoint.
// On success Valid is true and Reason is empty; on failure Valid is false
// and Reason carries exactly one of the reason codes above.
type VerificationResult struct {
	Valid     bool        `json:"valid"`
	Reason    string      `json:"reason,omitempty"`
	Type      LicenseType `json:"plan_type,omitempty"`
	Status    string      `json:"status,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	AccountID string      `json:"account_id,omitempty"`
	Message   string      `json:"message,omitempty"`
}
