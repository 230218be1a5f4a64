// Package postgres implements the goGuard credential, password history and
// audit stores on PostgreSQL using sqlx and lib/pq.
//
// Field setters are single UPDATE statements so concurrent requests never
// overwrite each other's columns. Compound writes (registration, password
// commits) run in one transaction.
package postgres
