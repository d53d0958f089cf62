package registry

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrDuplicateTool indicates two descriptors share a name.
	ErrDuplicateTool = errors.New("registry: duplicate tool")

	// ErrInvalidDescriptor indicates a descriptor that cannot be executed.
	ErrInvalidDescriptor = errors.New("registry: invalid descriptor")
)

// Registry is the immutable set of tools, keyed by name.
//
// Contract:
//   - Concurrency: safe for concurrent use; nothing mutates it after New.
//   - Ownership: descriptors returned by Lookup and Descriptors are shared
//     and must be treated as read-only.
type Registry struct {
	byName map[string]*Descriptor
	names  []string
}

// New validates descs and builds a registry.
func New(descs []Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Descriptor, len(descs))}
	ops := make(map[string]string)

	for i := range descs {
		d := descs[i]
		if err := validate(&d); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
		}
		if d.IsRead() && !d.NoCache {
			key := d.Entity + ":" + d.Op()
			if other, dup := ops[key]; dup {
				return nil, fmt.Errorf("%w: %s and %s share cache operation %s", ErrInvalidDescriptor, other, d.Name, key)
			}
			ops[key] = d.Name
		}
		r.byName[d.Name] = &d
		r.names = append(r.names, d.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// MustNew is New that panics on error. It is meant for static catalogs.
func MustNew(descs []Descriptor) *Registry {
	r, err := New(descs)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns a registry of the built-in ERP catalog.
func Default() *Registry {
	return MustNew(Catalog())
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns the tool names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Descriptors returns every descriptor sorted by name.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, len(r.names))
	for i, n := range r.names {
		out[i] = r.byName[n]
	}
	return out
}

// Len returns the number of tools.
func (r *Registry) Len() int { return len(r.names) }

// Entities returns the distinct entities of all tools in sorted order.
func (r *Registry) Entities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range r.byName {
		if !seen[d.Entity] {
			seen[d.Entity] = true
			out = append(out, d.Entity)
		}
	}
	sort.Strings(out)
	return out
}

var (
	toolName    = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	placeholder = regexp.MustCompile(`\{([a-z0-9_]+)\}`)
)

func validate(d *Descriptor) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidDescriptor, d.Name, fmt.Sprintf(format, args...))
	}

	if !toolName.MatchString(d.Name) {
		return fmt.Errorf("%w: name %q", ErrInvalidDescriptor, d.Name)
	}
	if d.Entity == "" || strings.ContainsAny(d.Entity, ":/ ") {
		return bad("entity %q", d.Entity)
	}
	switch d.Kind {
	case KindRead, KindWrite, KindDelete:
	default:
		return bad("kind %q", d.Kind)
	}
	if !d.Raw {
		switch d.Method {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			return bad("method %q", d.Method)
		}
		if d.Path == "" {
			return bad("empty path")
		}
		if d.IsRead() != (d.Method == http.MethodGet) {
			return bad("kind %s does not match method %s", d.Kind, d.Method)
		}
	}

	seen := make(map[string]bool)
	for _, p := range d.Params {
		for _, n := range p.Names() {
			if n == ArgFormat || n == ArgOutputFormat {
				return bad("parameter %q is reserved", n)
			}
			if seen[n] {
				return bad("parameter %q declared twice", n)
			}
			seen[n] = true
		}
		switch p.Type {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		default:
			return bad("parameter %q has type %q", p.Name, p.Type)
		}
		loc := d.location(p)
		if loc == InFilter && !strings.Contains(p.Filter, "{value}") {
			return bad("filter parameter %q has no {value} template", p.Name)
		}
		if loc == InPath && !strings.Contains(d.Path, "{"+p.Name+"}") {
			return bad("path parameter %q missing from %q", p.Name, d.Path)
		}
		if loc == InDateRange && d.DateColumn == "" {
			return bad("date parameter %q without a date column", p.Name)
		}
	}

	for _, m := range placeholder.FindAllStringSubmatch(d.Path, -1) {
		p, ok := d.Param(m[1])
		if !ok || d.location(p) != InPath || !p.Required {
			return bad("placeholder %s needs a required path parameter", m[0])
		}
	}
	if d.Scope != "" {
		if _, ok := d.Param(d.Scope); !ok {
			return bad("scope parameter %q not declared", d.Scope)
		}
	}
	if d.Paginated {
		if _, ok := d.Param("limit"); !ok {
			return bad("paginated without a limit parameter")
		}
	}
	return nil
}
