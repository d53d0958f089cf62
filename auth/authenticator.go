package auth

import (
	"context"
	"net/http"
	"strings"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: Authenticate returns (nil, error) for internal errors and
//     (AuthResult, nil) for accepted or rejected credentials.
type Authenticator interface {
	Name() string

	// Supports reports whether the request carries a credential this
	// authenticator understands.
	Supports(ctx context.Context, req *AuthRequest) bool

	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest contains the information needed for authentication.
type AuthRequest struct {
	Headers http.Header

	// RemoteAddr is the client address, used for failure lockout.
	RemoteAddr string
}

// GetHeader returns the first value for a header, or empty string.
func (r *AuthRequest) GetHeader(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// bearer returns the token of an "Authorization: Bearer" header.
func (r *AuthRequest) bearer() (string, bool) {
	token, ok := strings.CutPrefix(r.GetHeader("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// AuthResult is the result of an authentication attempt.
type AuthResult struct {
	Authenticated bool

	// Identity is set when Authenticated is true.
	Identity *Identity

	// Error is set when Authenticated is false.
	Error error

	Method string
}

// AuthSuccess creates a successful authentication result.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Identity:      identity,
		Method:        string(identity.Method),
	}
}

// AuthFailure creates a failed authentication result.
func AuthFailure(err error, method string) *AuthResult {
	return &AuthResult{Error: err, Method: method}
}
