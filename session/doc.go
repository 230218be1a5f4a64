// Package session implements the single-active-session rule: each user has at
// most one recorded session token, and a request presenting any other token
// belongs to a displaced session.
//
// # Architecture boundaries
//
// This package owns the comparison rule and token generation. Loading the
// recorded token, auditing a mismatch and clearing transport state belong to
// the Engine and the middleware package.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Compare tokens in variable time.
package session
