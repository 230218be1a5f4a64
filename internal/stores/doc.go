// Package stores provides the Redis-backed, short-lived record store for
// logins suspended at the second-factor stage.
//
// # Design
//
// Each continuation is a versioned, binary-encoded record in Redis with a TTL
// matching its logical expiry. Completion deletes the record; only the caller
// whose delete removed the key may issue a session.
//
// # Architecture boundaries
//
// This package owns persistence of transient continuation records. It does
// NOT verify codes, count failures or issue sessions; the Engine does.
//
// # What this package must NOT do
//
//   - Import goGuard or any sibling internal package.
//   - Store TOTP secrets or session tokens.
package stores
