// Package password hashes and verifies credentials.
//
// New hashes use Argon2id encoded as a PHC string:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt digests ($2a$, $2b$, $2y$) are accepted for verification only.
// [Argon2.NeedsUpgrade] flags them, and Argon2 hashes with weaker parameters,
// so the engine can re-hash after a successful login. Length policy lives in
// the engine, not here.
package password
