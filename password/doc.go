// Package password hashes and verifies login passwords.
//
// New hashes are always Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Legacy bcrypt hashes ($2a$, $2b$, $2y$) are still verified so that imported
// accounts can sign in; [Hasher.NeedsUpgrade] reports them (and weaker Argon2
// parameters) so the caller re-hashes after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other authcore package.
//   - Log plaintext passwords.
package password
