// Package domain defines the persistent entities and value objects of the
// license system: the License row itself, the human-gated PaymentRequest,
// the append-only ActivityLogEntry, and the VerificationResult returned to
// polling clients.
//
// The License is the single source of truth for whether a key grants
// access. Its key is permanent per owner and survives the trial-to-monthly
// transition; its bound account is written at most once, by the first
// successful verification, and never by issuance.
package domain
