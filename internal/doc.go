// Package internal contains helpers that are private to goGuard, chiefly
// secure random generation for session tokens and continuation ids.
//
// # Sub-packages
//
//   - audit: event model, sinks and dispatcher
//   - logging: zap logger construction
//   - stores: Redis-backed continuation store for pending second factors
//
// # What this package must NOT do
//
//   - Export types that appear in the public goGuard API.
//   - Be imported by any package outside the goGuard module.
package internal
