// Package session signs and verifies the stateless session credential.
//
// A credential is an HS256 JWT carrying the subject identity and issuance
// time, valid for a fixed horizon from mint. Possession is authentication:
// there is no server-side session table, so logout is purely client-side
// cookie deletion and revocation before natural expiry is not supported.
//
// Verify collapses every failure (bad signature, malformed token, expiry)
// into one [ErrInvalidSession] so callers cannot be used as a validity
// oracle; call sites that need detail log it themselves.
package session
