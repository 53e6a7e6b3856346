// Package portalauth runs the account flows of the user management portal:
// login with failed-attempt lockout, registration, administrator user
// management and password reset.
//
// A [Service] is assembled with [Builder] from a [Repository], an
// attempt.Limiter and a [TokenIssuer], and is safe for concurrent use once
// built. Stateless request authorization lives in the middleware package;
// tokens are signed and verified by package jwt.
//
// # Account state
//
// [Guard] owns the lockout rule. Each lookup of an unlocked account locks it
// when its failure count has reached the threshold. Looking up an already
// locked account clears its count unless SecurityConfig.KeepAttemptsWhileLocked
// is set. Username and email uniqueness are checked by
// [Guard.ValidateNewUsernameAndEmail] before any create or rename.
//
// # What this package must NOT do
//
//   - Return password hashes or generated passwords to callers.
//   - Import the HTTP layer or any concrete storage driver.
package portalauth
