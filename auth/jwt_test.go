package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestJWTAuthenticator_Authenticate(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Secret: testSecret, Issuer: "erp-sso", Audience: "erpgate"})
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:  "valid",
			token: signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "alice", "iss": "erp-sso", "aud": "erpgate", "exp": exp}),
		},
		{
			name:    "expired",
			token:   signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "alice", "iss": "erp-sso", "aud": "erpgate", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantErr: ErrTokenExpired,
		},
		{
			name:    "wrong secret",
			token:   signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "alice", "iss": "erp-sso", "aud": "erpgate"}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "wrong issuer",
			token:   signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "alice", "iss": "elsewhere", "aud": "erpgate"}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "wrong audience",
			token:   signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "alice", "iss": "erp-sso", "aud": "other"}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "other algorithm",
			token:   signToken(t, jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"sub": "alice", "iss": "erp-sso", "aud": "erpgate"}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "no subject",
			token:   signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"iss": "erp-sso", "aud": "erpgate"}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "garbage",
			token:   "not.a.jwt",
			wantErr: ErrTokenMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &AuthRequest{Headers: headers("Authorization", "Bearer "+tt.token)}
			if !a.Supports(context.Background(), req) {
				t.Fatal("Supports() = false")
			}
			res, err := a.Authenticate(context.Background(), req)
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if tt.wantErr != nil {
				if res.Authenticated || !errors.Is(res.Error, tt.wantErr) {
					t.Errorf("result = %+v, want failure %v", res, tt.wantErr)
				}
				return
			}
			if !res.Authenticated || res.Identity.Principal != "alice" {
				t.Fatalf("result = %+v, want alice", res)
			}
			if res.Identity.ExpiresAt.Unix() != exp {
				t.Errorf("ExpiresAt = %v, want %d", res.Identity.ExpiresAt, exp)
			}
		})
	}
}

func TestCompositeAuthenticator(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "bob"})
	c := NewCompositeAuthenticator(
		NewAPIKeyAuthenticator([]string{"k1"}),
		nil,
		NewJWTAuthenticator(JWTConfig{Secret: testSecret}),
	)

	tests := []struct {
		name      string
		headers   map[string]string
		principal string
		wantErr   error
	}{
		{"api key", map[string]string{"Authorization": "Bearer k1"}, "key-" + HashAPIKey("k1")[:8], nil},
		{"jwt", map[string]string{"Authorization": "Bearer " + token}, "bob", nil},
		{"bad key", map[string]string{"Authorization": "Bearer k2"}, "", ErrInvalidCredentials},
		{"nothing", nil, "", ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := headers()
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			res, err := c.Authenticate(context.Background(), &AuthRequest{Headers: h})
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if tt.wantErr != nil {
				if res.Authenticated || !errors.Is(res.Error, tt.wantErr) {
					t.Errorf("result = %+v, want %v", res, tt.wantErr)
				}
				return
			}
			if !res.Authenticated || res.Identity.Principal != tt.principal {
				t.Errorf("result = %+v, want principal %q", res, tt.principal)
			}
		})
	}
}
