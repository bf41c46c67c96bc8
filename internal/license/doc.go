// Package license implements the core license lifecycle: deterministic key
// issuance, the trial/monthly state machine with lazy expiry, the
// first-use-wins account binding guard, and the verification service the
// remote trading client polls.
//
// # Lifecycle
//
// A key is derived once per owner and never changes. Issuance produces an
// inactive row with no expiry and no binding. A trial grant or an approved
// monthly payment activates it; expiry is evaluated lazily on read, with the
// first read past the deadline persisting the expired status. The binding to
// a trading account happens on the first successful verification and is
// immutable thereafter.
//
// # Verification order
//
// Verify checks, in order: key format, existence, payment/active status,
// expiry, account binding. Each step is a terminal failure with its own
// reason code; every attempt, successful or not, is appended to the
// activity log.
package license
