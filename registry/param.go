package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type is the JSON type of a parameter.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Location says where a bound parameter travels in the backend request.
type Location int

const (
	// InAuto resolves to InQuery for reads and InBody for writes.
	InAuto Location = iota
	InQuery
	InBody
	InPath
	// InFilter renders the parameter into the sqlfilters expression through
	// ParamSpec.Filter.
	InFilter
	// InDateRange feeds the year/month/date_start/date_end filter built
	// against Descriptor.DateColumn.
	InDateRange
	// InNone validates the parameter and keys the cache with it but sends
	// nothing to the backend.
	InNone
)

// ParamSpec declares one caller-facing argument.
type ParamSpec struct {
	// Name is the canonical caller-facing name.
	Name        string
	Type        Type
	Description string
	Required    bool

	// Default is applied when the caller omits the parameter.
	Default any

	// Enum restricts the accepted values.
	Enum []any

	Minimum *float64
	Maximum *float64

	// Aliases are alternative caller-facing names folded into Name.
	Aliases []string

	// Backend renames the parameter on the wire. Empty keeps Name.
	Backend string

	In Location

	// Filter is the sqlfilters template for InFilter parameters. "{value}"
	// is replaced by the escaped value. Array values render one term per
	// element joined with OR.
	Filter string

	// Items describes array elements.
	Items *ParamSpec

	// Fields describes the properties of an object (or of each array
	// element when Items.Type is TypeObject). Unknown properties pass
	// through unchanged.
	Fields []ParamSpec
}

// WireName returns the backend name of the parameter.
func (p ParamSpec) WireName() string {
	if p.Backend != "" {
		return p.Backend
	}
	return p.Name
}

// Names returns the canonical name followed by the aliases.
func (p ParamSpec) Names() []string {
	return append([]string{p.Name}, p.Aliases...)
}

func ptr(f float64) *float64 { return &f }

// coerce converts a decoded JSON value into the canonical Go type for t.
// Integers become int64, numbers float64. Numeric strings are accepted for
// integer and number parameters.
func coerce(t Type, v any) (any, error) {
	switch t {
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64, int, int64, json.Number:
			return formatScalar(x), nil
		}
	case TypeInteger:
		return toInt(v)
	case TypeNumber:
		return toFloat(v)
	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b, nil
			}
		case float64:
			if x == 0 || x == 1 {
				return x == 1, nil
			}
		}
	case TypeObject:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
	case TypeArray:
		if a, ok := v.([]any); ok {
			return a, nil
		}
	}
	return nil, fmt.Errorf("expected %s", t)
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x), nil
		}
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("expected integer")
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, nil
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("expected number")
}

// formatScalar renders a value for a query string, a path segment or a
// filter. Booleans use the backend's 1/0 convention.
func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "1"
		}
		return "0"
	case nil:
		return ""
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// check validates a coerced value against the enum and range constraints.
func (p ParamSpec) check(v any) error {
	if len(p.Enum) > 0 {
		s := formatScalar(v)
		ok := false
		for _, e := range p.Enum {
			if formatScalar(e) == s {
				ok = true
				break
			}
		}
		if !ok {
			allowed := make([]string, len(p.Enum))
			for i, e := range p.Enum {
				allowed[i] = formatScalar(e)
			}
			return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
		}
	}
	if p.Minimum == nil && p.Maximum == nil {
		return nil
	}
	f, err := toFloat(v)
	if err != nil {
		return nil
	}
	if p.Minimum != nil && f < *p.Minimum {
		return fmt.Errorf("must be >= %s", formatScalar(*p.Minimum))
	}
	if p.Maximum != nil && f > *p.Maximum {
		return fmt.Errorf("must be <= %s", formatScalar(*p.Maximum))
	}
	return nil
}
