package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// DefaultPrefix is the namespace of every key a Keyer produces.
const DefaultPrefix = "erp"

// Scope places an entry in a per-value aggregate group of its entity, for
// example every cached invoice list of customer 542.
type Scope struct {
	Param string
	Value string
}

// IsZero reports whether s names no group.
func (s Scope) IsZero() bool { return s.Param == "" }

// Keyer derives cache keys.
//
// Layout:
//
//	<prefix>:<entity>:<operation>:<hash>
//	<prefix>:<entity>/<param>=<value>:<operation>:<hash>
//
// hash is the first 8 bytes (16 hex characters) of SHA-256 over the
// canonical JSON of the normalized arguments. Object keys are sorted at
// every depth, so argument order never changes the key.
type Keyer struct {
	prefix string
}

// NewKeyer returns a Keyer using prefix, or DefaultPrefix when empty.
func NewKeyer(prefix string) Keyer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keyer{prefix: prefix}
}

// Prefix returns the key namespace.
func (k Keyer) Prefix() string { return k.prefix }

// Key returns the key for one logical request.
func (k Keyer) Key(entity, operation string, scope Scope, args map[string]any) (string, error) {
	if !validSegment(entity) || !validSegment(operation) {
		return "", fmt.Errorf("%w: entity %q operation %q", ErrInvalidKey, entity, operation)
	}

	// encoding/json writes map keys in sorted order at every depth.
	canonical, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize arguments: %w", err)
	}
	sum := sha256.Sum256(canonical)

	var b strings.Builder
	b.WriteString(k.prefix)
	b.WriteByte(':')
	b.WriteString(entity)
	if !scope.IsZero() {
		b.WriteByte('/')
		b.WriteString(url.QueryEscape(scope.Param))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(scope.Value))
	}
	b.WriteByte(':')
	b.WriteString(operation)
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(sum[:8]))

	key := b.String()
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// EntityPrefixes returns the key prefixes covering every entry of entity:
// its unscoped entries and all of its scoped aggregate groups.
func (k Keyer) EntityPrefixes(entity string) []string {
	base := k.prefix + ":" + entity
	return []string{base + ":", base + "/"}
}

// ScopePrefix returns the prefix covering one aggregate group of entity.
func (k Keyer) ScopePrefix(entity string, scope Scope) string {
	return k.prefix + ":" + entity + "/" + url.QueryEscape(scope.Param) + "=" + url.QueryEscape(scope.Value) + ":"
}

func validSegment(s string) bool {
	return s != "" && !strings.ContainsAny(s, ":/\n\r ")
}
