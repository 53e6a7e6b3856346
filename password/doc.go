// Package password hashes and verifies account passwords.
//
// [Bcrypt] is the default and matches hashes created by existing portal
// deployments. [Argon2] is available for new installations, and [Chain]
// verifies either format while hashing with one.
//
// Callers pass plaintext in and get hashes out; nothing here stores or logs
// a password.
package password
