// Package goGuard is the authentication and session-security core of a web
// application: it decides the outcome of every login attempt, keeps each user
// down to one active session, and enforces the password lifecycle policy.
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Engine], [Builder], [Config], the
// store contracts ([CredentialStore], [PasswordHistoryStore], [AuditStore],
// [Mailer]) and value types. Audit dispatch, pending two-factor logins and
// random identifiers live under internal/.
//
// Persistence is pluggable: store/postgres backs production deployments and
// store/memory backs tests and local runs. Pending two-factor logins are kept
// in Redis with a short TTL.
//
// # Login
//
// [Engine.Login] walks HumanCheck, CredentialLookup, LockoutCheck and
// PasswordCheck, then either issues a session or suspends the attempt for
// [Engine.CompleteTwoFactor]. Each rejection is a [*LoginError] whose Kind
// names the stage and whose Message is safe to show. Every terminal outcome
// writes one audit event.
//
// # Sessions
//
// Each successful login writes a new opaque session token to the user record,
// displacing the previous one. [Engine.CheckSession] compares the token a
// request presents with the recorded one; middleware ends displaced sessions.
//
// # Passwords
//
// Changes and resets enforce a minimum age, a strength policy and a reuse
// history. [Engine.PasswordStatus] reports the maximum-age advisory.
package goGuard
