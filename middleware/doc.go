// Package middleware resolves bearer tokens into a per-request
// [SecurityContext] and enforces access on top of it.
//
// # Filter
//
// [Filter.Resolve] is the state machine shared by every adapter:
//
//   - OPTIONS requests are preflight and never reach token verification.
//   - A missing or non-Bearer Authorization header leaves the request anonymous.
//   - A token that fails verification, or arrives when a context is already
//     set, clears the context and marks the request as rejected.
//   - A verified token sets the subject and authorities.
//
// The filter never rejects a request on its own. [RequireAuthenticated] and
// [RequireAuthority] make the access decision and write the denial.
//
// Framework adapters live in ginauth, echoauth and grpcauth.
package middleware
