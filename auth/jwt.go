package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Secret is the HS256 signing key.
	Secret []byte

	// Issuer, when set, must match the iss claim.
	Issuer string

	// Audience, when set, must be present in the aud claim.
	Audience string

	// PrincipalClaim is the claim naming the caller.
	// Default: "sub"
	PrincipalClaim string

	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration
}

// JWTAuthenticator validates HS256 bearer tokens.
type JWTAuthenticator struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config JWTConfig) *JWTAuthenticator {
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	return &JWTAuthenticator{config: config, parser: jwt.NewParser(opts...)}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string { return "jwt" }

// Supports returns true for bearer values shaped like a JWT.
func (a *JWTAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	token, ok := req.bearer()
	return ok && looksLikeJWT(token)
}

// Authenticate validates the token signature and registered claims.
func (a *JWTAuthenticator) Authenticate(_ context.Context, req *AuthRequest) (*AuthResult, error) {
	tokenString, ok := req.bearer()
	if !ok {
		return AuthFailure(ErrMissingCredentials, "jwt"), nil
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.config.Secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return AuthFailure(ErrTokenExpired, "jwt"), nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return AuthFailure(ErrTokenMalformed, "jwt"), nil
	default:
		return AuthFailure(ErrInvalidCredentials, "jwt"), nil
	}

	principal, _ := claims[a.config.PrincipalClaim].(string)
	if principal == "" {
		return AuthFailure(ErrInvalidCredentials, "jwt"), nil
	}

	identity := &Identity{
		Principal: principal,
		Method:    AuthMethodJWT,
		Claims:    map[string]any(claims),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return AuthSuccess(identity), nil
}

var _ Authenticator = (*JWTAuthenticator)(nil)
