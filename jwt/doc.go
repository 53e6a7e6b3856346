// Package jwt issues and verifies the compact HS256 tokens that carry an
// identity and its authorities.
//
// The payload uses the claim names issuer, audience, subject, issuedAt,
// expiresAt and authorities. Verification needs only the shared secret, so
// a [Manager] can serve any number of concurrent requests without locking.
//
// Tokens are never stored server-side. Rotating the secret invalidates every
// outstanding token; they then fail with [ErrSignatureInvalid].
package jwt
