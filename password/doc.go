// Package password implements argon2id hashing and the composition policy
// applied to new passwords.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash after a successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification and composition rules only. Age
// and reuse rules are enforced by the Engine against the password history.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other goGuard package.
//   - Log plaintext passwords.
package password
