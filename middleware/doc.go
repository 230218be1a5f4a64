// Package middleware adapts goGuard.Engine to HTTP servers.
//
// # Chain
//
//   - [Authenticate] reads the identity cookie, verifies it through
//     Engine.ParseIdentity and stores the user id in the request context. It
//     also attaches client IP and User-Agent for audit events.
//   - [SessionGuard] runs after Authenticate and enforces the single active
//     session: a displaced token clears cookies and redirects to
//     LoginPath?concurrent=1; an expired identity with a lingering session
//     cookie redirects to LoginPath?sessionExpired=1.
//   - [RequirePasswordChange] is optional and runs last: once a password is
//     past its maximum age only ChangePasswordPath stays reachable.
//
// [GinAuthenticate], [GinSessionGuard] and [GinRequirePasswordChange] are the
// gin equivalents.
//
// This package translates HTTP semantics into Engine calls. It does not
// implement authentication decisions itself.
package middleware
