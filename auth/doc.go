// Package auth authenticates callers of the HTTP transport.
//
// Two credential types are accepted, both as "Authorization: Bearer <x>":
// static API keys, stored only as SHA-256 hashes, and HS256 JWTs. API keys
// may also arrive in X-API-Key. Guard wraps an http.Handler with
// authentication, a per-address failure lockout and a per-principal rate
// limit.
package auth
