package registry

import (
	"github.com/jonwraymond/erpgate/encode"
)

// Kind classifies what a tool does to the backend.
type Kind string

const (
	KindRead   Kind = "read"
	KindWrite  Kind = "write"
	KindDelete Kind = "delete"
)

// ResultShape selects a post-processing step for the backend payload.
type ResultShape int

const (
	// ResultAsIs returns the (projected) payload unchanged.
	ResultAsIs ResultShape = iota
	// ResultCreated normalizes a bare id or {"success":{"id":N}} into
	// {"id":N}.
	ResultCreated
	// ResultResolve reduces a reference lookup to
	// {"status":"ok"|"not_found"|"ambiguous", ...}.
	ResultResolve
)

// Descriptor is the immutable definition of one tool.
type Descriptor struct {
	Name        string
	Description string

	// Entity is the cache tag and invalidation target.
	Entity string
	Kind   Kind

	// Operation distinguishes cache keys of one entity. Default: Name.
	Operation string

	// Method and Path address the backend. Path placeholders {name} are
	// filled from InPath parameters.
	Method string
	Path   string

	Params []ParamSpec

	// Query and Body hold fixed values sent on every call.
	Query map[string]string
	Body  map[string]any

	// DateColumn is the column filtered by InDateRange parameters.
	DateColumn string

	// Projection trims backend records to the documented fields.
	Projection encode.Projection

	// Scope names the parameter whose value places cache entries of this
	// tool in a per-value aggregate group, and whose value selects the group
	// purged by a write.
	Scope string

	// Paginated flags results whose row count reached "limit" as truncated.
	Paginated bool

	// EmptyOnNotFound turns a backend 404 into an empty list.
	EmptyOnNotFound bool

	// OpenBody forwards undeclared arguments as body fields.
	OpenBody bool

	// NoCache keeps a read out of the cache.
	NoCache bool

	// Raw takes the method and path from the "method" and "endpoint"
	// arguments.
	Raw bool

	// Invalidates lists entities purged on success in addition to Entity
	// and its policy cascade.
	Invalidates []string

	Result ResultShape

	// Prepare adjusts the request body after binding.
	Prepare func(body map[string]any)
}

// Op returns the cache operation name.
func (d *Descriptor) Op() string {
	if d.Operation != "" {
		return d.Operation
	}
	return d.Name
}

// IsRead reports whether the tool leaves the backend unchanged.
func (d *Descriptor) IsRead() bool { return d.Kind == KindRead }

// Param returns the parameter with the given canonical name.
func (d *Descriptor) Param(name string) (ParamSpec, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

func (d *Descriptor) location(p ParamSpec) Location {
	if p.In != InAuto {
		return p.In
	}
	if d.IsRead() {
		return InQuery
	}
	return InBody
}
