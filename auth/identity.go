package auth

import "time"

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodNone   AuthMethod = "none"
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Identity represents an authenticated caller.
type Identity struct {
	// Principal identifies the caller in logs and rate limiting. For API
	// keys it is derived from the key hash, never the key itself.
	Principal string

	Method AuthMethod

	// Claims holds the token claims for JWT callers.
	Claims map[string]any

	// ExpiresAt is zero for credentials that do not expire.
	ExpiresAt time.Time
}

// IsExpired reports whether the identity has expired.
func (id *Identity) IsExpired() bool {
	return !id.ExpiresAt.IsZero() && time.Now().After(id.ExpiresAt)
}

// AnonymousIdentity is attached when authentication is disabled.
func AnonymousIdentity() *Identity {
	return &Identity{Principal: "anonymous", Method: AuthMethodNone}
}
