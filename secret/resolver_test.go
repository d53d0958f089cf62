package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubProvider struct {
	name   string
	values map[string]string
	err    error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.values[ref], nil
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in             string
		provider, ref  string
		ok             bool
	}{
		{"secretref:env:ERP_API_KEY", "env", "ERP_API_KEY", true},
		{"secretref:file:/run/secrets/key", "file", "/run/secrets/key", true},
		{"secretref:env:", "", "", false},
		{"secretref::x", "", "", false},
		{"secretref:env", "", "", false},
		{"plain", "", "", false},
	}
	for _, tt := range tests {
		provider, ref, ok := ParseSecretRef(tt.in)
		if provider != tt.provider || ref != tt.ref || ok != tt.ok {
			t.Errorf("ParseSecretRef(%q) = %q, %q, %v; want %q, %q, %v", tt.in, provider, ref, ok, tt.provider, tt.ref, tt.ok)
		}
	}
}

func TestResolver_ResolveValue(t *testing.T) {
	t.Setenv("ERP_REGION", "eu")
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"alpha": "one", "beta": "two"}})

	tests := []struct {
		in   string
		want string
	}{
		{"secretref:stub:alpha", "one"},
		{"Bearer secretref:stub:beta", "Bearer two"},
		{"secretref:stub:alpha/secretref:stub:beta", "one/two"},
		{"https://${ERP_REGION}.erp", "https://eu.erp"},
		{"literal", "literal"},
	}
	for _, tt := range tests {
		got, err := r.ResolveValue(context.Background(), tt.in)
		if err != nil {
			t.Errorf("ResolveValue(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolver_Errors(t *testing.T) {
	boom := errors.New("vault sealed")
	r := NewResolver(true,
		&stubProvider{name: "stub", values: map[string]string{"empty": ""}},
		&stubProvider{name: "broken", err: boom},
	)

	tests := []struct {
		in   string
		want error
	}{
		{"secretref:nope:x", ErrUnknownProvider},
		{"secretref:stub:empty", ErrEmptySecret},
		{"secretref:broken:x", boom},
		{"${ERP_SURELY_UNSET_VARIABLE}", ErrMissingEnv},
	}
	for _, tt := range tests {
		if _, err := r.ResolveValue(context.Background(), tt.in); !errors.Is(err, tt.want) {
			t.Errorf("ResolveValue(%q) error = %v, want %v", tt.in, err, tt.want)
		}
	}

	lenient := NewResolver(false, &stubProvider{name: "stub", values: map[string]string{}})
	if got, err := lenient.ResolveValue(context.Background(), "secretref:stub:empty"); err != nil || got != "" {
		t.Errorf("lenient ResolveValue() = %q, %v; want empty value", got, err)
	}
}

func TestResolver_ResolveSliceAndFields(t *testing.T) {
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"alpha": "one"}})

	slice, err := r.ResolveSlice(context.Background(), []string{"a", "secretref:stub:alpha"})
	if err != nil {
		t.Fatalf("ResolveSlice() error = %v", err)
	}
	if slice[0] != "a" || slice[1] != "one" {
		t.Errorf("ResolveSlice() = %v", slice)
	}

	key, empty := "secretref:stub:alpha", ""
	if err := r.ResolveFields(context.Background(), map[string]*string{"api_key": &key, "jwt_secret": &empty}); err != nil {
		t.Fatalf("ResolveFields() error = %v", err)
	}
	if key != "one" || empty != "" {
		t.Errorf("fields = %q, %q", key, empty)
	}

	bad := "secretref:nope:x"
	err = r.ResolveFields(context.Background(), map[string]*string{"api_key": &bad})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("ResolveFields() error = %v, want ErrUnknownProvider", err)
	}
}

func TestDefaultResolver_EnvAndFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "erp_api_key"), []byte("s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ERP_TEST_TOKEN", "tok")

	r := DefaultResolver(dir)
	tests := []struct {
		in   string
		want string
	}{
		{"secretref:file:erp_api_key", "s3cret"},
		{"secretref:file:" + filepath.Join(dir, "erp_api_key"), "s3cret"},
		{"secretref:env:ERP_TEST_TOKEN", "tok"},
	}
	for _, tt := range tests {
		got, err := r.ResolveValue(context.Background(), tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ResolveValue(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}

	for _, in := range []string{"secretref:file:missing", "secretref:env:ERP_SURELY_UNSET_VARIABLE"} {
		if _, err := r.ResolveValue(context.Background(), in); !errors.Is(err, ErrNotFound) {
			t.Errorf("ResolveValue(%q) error = %v, want ErrNotFound", in, err)
		}
	}
}
