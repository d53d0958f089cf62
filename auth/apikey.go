package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// APIKeyHeader is the alternative to a bearer API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuthenticator validates static API keys. Keys are hashed on
// construction; plaintext keys are not retained.
type APIKeyAuthenticator struct {
	hashes map[string]string // hash -> principal
}

// NewAPIKeyAuthenticator creates an authenticator accepting keys. Blank
// keys are ignored.
func NewAPIKeyAuthenticator(keys []string) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{hashes: make(map[string]string, len(keys))}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			h := HashAPIKey(k)
			a.hashes[h] = "key-" + h[:8]
		}
	}
	return a
}

// Len returns the number of configured keys.
func (a *APIKeyAuthenticator) Len() int { return len(a.hashes) }

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return "api_key" }

// Supports accepts X-API-Key and bearer values that are not JWTs.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	_, ok := a.credential(req)
	return ok
}

// Authenticate checks the key against the configured hashes.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, req *AuthRequest) (*AuthResult, error) {
	key, ok := a.credential(req)
	if !ok {
		return AuthFailure(ErrMissingCredentials, "api_key"), nil
	}
	principal, ok := a.hashes[HashAPIKey(key)]
	if !ok {
		return AuthFailure(ErrInvalidCredentials, "api_key"), nil
	}
	return AuthSuccess(&Identity{Principal: principal, Method: AuthMethodAPIKey}), nil
}

func (a *APIKeyAuthenticator) credential(req *AuthRequest) (string, bool) {
	if key := strings.TrimSpace(req.GetHeader(APIKeyHeader)); key != "" {
		return key, true
	}
	token, ok := req.bearer()
	if !ok || looksLikeJWT(token) {
		return "", false
	}
	return token, true
}

// HashAPIKey hashes an API key using SHA-256.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
