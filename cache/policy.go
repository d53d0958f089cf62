package cache

import (
	"fmt"
	"slices"
	"time"
)

// TTLClass names an entity volatility class.
type TTLClass string

const (
	TTLNone     TTLClass = "none"
	TTLShort    TTLClass = "short"
	TTLMedium   TTLClass = "medium"
	TTLLong     TTLClass = "long"
	TTLExtended TTLClass = "extended"
	TTLStatic   TTLClass = "static"
)

// DefaultClassTTLs maps each class to its lifetime.
var DefaultClassTTLs = map[TTLClass]time.Duration{
	TTLNone:     0,
	TTLShort:    30 * time.Second,
	TTLMedium:   5 * time.Minute,
	TTLLong:     15 * time.Minute,
	TTLExtended: 30 * time.Minute,
	TTLStatic:   time.Hour,
}

// Policy is the static freshness and invalidation table.
type Policy struct {
	// Classes maps a TTL class to its lifetime.
	Classes map[TTLClass]time.Duration

	// Entities maps an entity to its TTL class. Entities not listed are
	// not cached.
	Entities map[string]TTLClass

	// Invalidates maps an entity to the dependents purged with it when it
	// is written. Cascades are one level deep.
	Invalidates map[string][]string
}

// DefaultPolicy returns the built-in table for the ERP entities.
func DefaultPolicy() Policy {
	classes := make(map[TTLClass]time.Duration, len(DefaultClassTTLs))
	for c, d := range DefaultClassTTLs {
		classes[c] = d
	}
	return Policy{
		Classes: classes,
		Entities: map[string]TTLClass{
			"status":    TTLShort,
			"invoices":  TTLShort,
			"orders":    TTLShort,
			"proposals": TTLShort,
			"customers": TTLMedium,
			"contacts":  TTLMedium,
			"projects":  TTLMedium,
			"products":  TTLExtended,
			"users":     TTLStatic,
		},
		Invalidates: map[string][]string{
			"customers": {"contacts", "invoices", "orders", "proposals", "projects"},
			"invoices":  {"orders"},
			"orders":    {"proposals"},
		},
	}
}

// TTL returns the lifetime of entries for entity. A zero result means the
// entity is not cached.
func (p Policy) TTL(entity string) time.Duration {
	class, ok := p.Entities[entity]
	if !ok {
		return 0
	}
	return p.Classes[class]
}

// Cascade returns entity followed by its declared dependents, without
// duplicates.
func (p Policy) Cascade(entity string) []string {
	out := []string{entity}
	for _, dep := range p.Invalidates[entity] {
		if !slices.Contains(out, dep) {
			out = append(out, dep)
		}
	}
	return out
}

// Validate checks that every referenced class is defined and every
// lifetime is non-negative.
func (p Policy) Validate() error {
	for class, d := range p.Classes {
		if d < 0 {
			return fmt.Errorf("cache: ttl class %q has negative lifetime %s", class, d)
		}
	}
	for entity, class := range p.Entities {
		if _, ok := p.Classes[class]; !ok {
			return fmt.Errorf("cache: entity %q uses undefined ttl class %q", entity, class)
		}
	}
	return nil
}

// ValidClass reports whether c is one of the built-in classes.
func ValidClass(c TTLClass) bool {
	_, ok := DefaultClassTTLs[c]
	return ok
}
