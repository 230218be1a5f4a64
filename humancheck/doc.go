// Package humancheck verifies client-supplied bot-detection tokens against a
// reCAPTCHA v3 compatible siteverify endpoint and normalizes the answer into a
// [Result].
//
// # Failure model
//
// [Verifier.Verify] never returns an error and never panics. Every failure is
// a Result with Valid=false and a distinct ErrorCode:
//
//	MISSING_TOKEN     empty token, no network call made
//	NETWORK_ERROR     transport failure or timeout
//	HTTP_<status>     non-2xx reply
//	INVALID_RESPONSE  body is not the expected JSON shape
//	<codes>           verifier reported success=false (its error-codes, joined)
//	ACTION_MISMATCH   reply is for a different action
//	LOW_SCORE         score below the configured minimum
//
// A disabled or unconfigured verifier passes every call with Skipped=true so
// audit trails can tell a skipped check from a genuine pass.
//
// # Architecture boundaries
//
// This package owns the outbound call and result normalization. Deciding what
// a failed check means for a login is the Engine's job. Every call is reported
// to a [Recorder]; recorder failures are contained here.
package humancheck
