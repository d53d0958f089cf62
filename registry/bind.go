package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/erpgate/toolerr"
)

// Reserved arguments select the output format and are never forwarded.
const (
	ArgFormat       = "format"
	ArgOutputFormat = "output_format"
)

// Bound is a validated call ready for the connector.
type Bound struct {
	Method string
	Path   string
	Query  url.Values

	// Body is the JSON request body, or nil.
	Body []byte

	// Args are the normalized arguments: aliases folded, defaults applied,
	// values coerced to canonical types, reserved arguments removed. They
	// are the input of the cache key.
	Args map[string]any

	// Entity is the cache tag of the call.
	Entity string

	// ID identifies the addressed record in not_found errors.
	ID string

	// ScopeParam and ScopeValue name the aggregate group of the call.
	ScopeParam string
	ScopeValue string

	// Format is the raw requested output format, or "".
	Format string

	// Write reports whether the call changes backend state.
	Write bool
}

// Bind validates args against the descriptor and maps them onto a backend
// request. Every problem is reported at once in a single validation error
// listing the offending fields.
func (d *Descriptor) Bind(args map[string]any) (*Bound, error) {
	rest := make(map[string]any, len(args))
	for k, v := range args {
		rest[k] = v
	}

	var (
		missing []string
		invalid []toolerr.FieldError
	)
	b := &Bound{Method: d.Method, Entity: d.Entity, Query: url.Values{}, Write: !d.IsRead()}

	for _, key := range []string{ArgFormat, ArgOutputFormat} {
		v, ok := rest[key]
		if !ok {
			continue
		}
		delete(rest, key)
		s, isString := v.(string)
		if !isString {
			invalid = append(invalid, toolerr.FieldError{Field: key, Reason: "expected string"})
			continue
		}
		if b.Format == "" {
			b.Format = s
		}
	}

	values := make(map[string]any, len(d.Params))
	for _, p := range d.Params {
		v, found := take(rest, p)
		if !found {
			if p.Default == nil {
				if p.Required {
					missing = append(missing, p.Name)
				}
				continue
			}
			v = p.Default
		}
		cv, m, inv := bindValue(p, v, p.Name)
		missing = append(missing, m...)
		invalid = append(invalid, inv...)
		if len(m) == 0 && len(inv) == 0 {
			values[p.Name] = cv
		}
	}

	extras := make(map[string]any)
	for k, v := range rest {
		if d.OpenBody {
			extras[k] = v
			continue
		}
		invalid = append(invalid, toolerr.FieldError{Field: k, Reason: "unknown parameter"})
	}

	invalid = append(invalid, checkDateRange(d, values)...)

	if len(missing) > 0 || len(invalid) > 0 {
		return nil, toolerr.Validation("", missing, invalid)
	}

	b.Args = make(map[string]any, len(values)+len(extras))
	for k, v := range values {
		b.Args[k] = v
	}
	for k, v := range extras {
		b.Args[k] = v
	}

	if d.Raw {
		if err := bindRaw(b, values); err != nil {
			return nil, err
		}
		return b, nil
	}

	if err := d.place(b, values, extras); err != nil {
		return nil, err
	}
	if d.Scope != "" {
		if v, ok := values[d.Scope]; ok {
			p, _ := d.Param(d.Scope)
			b.ScopeParam = p.WireName()
			b.ScopeValue = formatScalar(v)
		}
	}
	return b, nil
}

// place distributes bound values over path, query, filters and body.
func (d *Descriptor) place(b *Bound, values, extras map[string]any) error {
	for k, v := range d.Query {
		b.Query.Set(k, v)
	}
	body := make(map[string]any, len(d.Body)+len(values)+len(extras))
	for k, v := range d.Body {
		body[k] = v
	}

	path := d.Path
	var filters []string
	for _, p := range d.Params {
		v, ok := values[p.Name]
		if !ok {
			continue
		}
		switch d.location(p) {
		case InPath:
			s := formatScalar(v)
			path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(s))
			if b.ID == "" {
				b.ID = s
			}
		case InQuery:
			b.Query.Set(p.WireName(), formatScalar(v))
		case InBody:
			body[p.WireName()] = wireValue(p, v)
		case InFilter:
			if f := renderFilter(p.Filter, v); f != "" {
				filters = append(filters, f)
			}
		}
	}
	filters = append(filters, dateFilters(d.DateColumn, values)...)
	if len(filters) > 0 {
		b.Query.Set("sqlfilters", strings.Join(filters, " AND "))
	}
	b.Path = path

	for k, v := range extras {
		body[k] = v
	}
	if d.Prepare != nil {
		d.Prepare(body)
	}
	return setBody(b, body)
}

func setBody(b *Bound, body map[string]any) error {
	switch {
	case !b.Write:
		return nil
	case b.Method == http.MethodDelete && len(body) == 0:
		return nil
	}
	if body == nil {
		body = map[string]any{}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return toolerr.Validation("", nil, []toolerr.FieldError{{Field: "body", Reason: "not representable as JSON"}})
	}
	b.Body = data
	return nil
}

// take removes every spelling of p from rest and returns the value under
// the canonical name, or under the first alias present.
func take(rest map[string]any, p ParamSpec) (any, bool) {
	var (
		v     any
		found bool
	)
	for _, name := range p.Names() {
		x, ok := rest[name]
		if !ok {
			continue
		}
		delete(rest, name)
		if !found && x != nil {
			v, found = x, true
		}
	}
	return v, found
}

// bindValue coerces and checks one value. path prefixes field names in
// errors, for example "lines[2].qty".
func bindValue(p ParamSpec, v any, path string) (any, []string, []toolerr.FieldError) {
	cv, err := coerce(p.Type, v)
	if err != nil {
		return nil, nil, []toolerr.FieldError{{Field: path, Reason: err.Error()}}
	}
	if err := p.check(cv); err != nil {
		return nil, nil, []toolerr.FieldError{{Field: path, Reason: err.Error()}}
	}

	switch x := cv.(type) {
	case []any:
		if p.Items == nil {
			return x, nil, nil
		}
		var (
			missing []string
			invalid []toolerr.FieldError
		)
		out := make([]any, len(x))
		for i, elem := range x {
			ev, m, inv := bindValue(*p.Items, elem, fmt.Sprintf("%s[%d]", path, i))
			missing = append(missing, m...)
			invalid = append(invalid, inv...)
			out[i] = ev
		}
		return out, missing, invalid
	case map[string]any:
		if len(p.Fields) == 0 {
			return x, nil, nil
		}
		return bindObject(p.Fields, x, path)
	}
	return cv, nil, nil
}

func bindObject(fields []ParamSpec, m map[string]any, path string) (map[string]any, []string, []toolerr.FieldError) {
	rest := make(map[string]any, len(m))
	for k, v := range m {
		rest[k] = v
	}
	var (
		missing []string
		invalid []toolerr.FieldError
	)
	out := make(map[string]any, len(m))
	for _, f := range fields {
		v, found := take(rest, f)
		if !found {
			if f.Default == nil {
				if f.Required {
					missing = append(missing, path+"."+f.Name)
				}
				continue
			}
			v = f.Default
		}
		cv, mm, inv := bindValue(f, v, path+"."+f.Name)
		missing = append(missing, mm...)
		invalid = append(invalid, inv...)
		out[f.Name] = cv
	}
	for k, v := range rest {
		out[k] = v
	}
	return out, missing, invalid
}

// wireValue renames nested fields to their backend names.
func wireValue(p ParamSpec, v any) any {
	switch x := v.(type) {
	case []any:
		if p.Items == nil {
			return x
		}
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = wireValue(*p.Items, elem)
		}
		return out
	case map[string]any:
		if len(p.Fields) == 0 {
			return x
		}
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = val
		}
		for _, f := range p.Fields {
			val, ok := out[f.Name]
			if !ok {
				continue
			}
			delete(out, f.Name)
			out[f.WireName()] = wireValue(f, val)
		}
		return out
	}
	return v
}

var filterEscaper = strings.NewReplacer("'", "''")

// renderFilter fills a sqlfilters template. Quotes in values are doubled.
func renderFilter(tmpl string, v any) string {
	if arr, ok := v.([]any); ok {
		terms := make([]string, 0, len(arr))
		for _, e := range arr {
			terms = append(terms, strings.ReplaceAll(tmpl, "{value}", filterEscaper.Replace(formatScalar(e))))
		}
		switch len(terms) {
		case 0:
			return ""
		case 1:
			return terms[0]
		}
		return "(" + strings.Join(terms, " OR ") + ")"
	}
	return strings.ReplaceAll(tmpl, "{value}", filterEscaper.Replace(formatScalar(v)))
}

const dateLayout = "2006-01-02"

func checkDateRange(d *Descriptor, values map[string]any) []toolerr.FieldError {
	var invalid []toolerr.FieldError
	for _, p := range d.Params {
		if d.location(p) != InDateRange {
			continue
		}
		if s, ok := values[p.Name].(string); ok {
			if _, err := time.Parse(dateLayout, s); err != nil {
				invalid = append(invalid, toolerr.FieldError{Field: p.Name, Reason: "expected YYYY-MM-DD"})
			}
		}
	}
	if _, hasMonth := values["month"]; hasMonth {
		if _, hasYear := values["year"]; !hasYear {
			invalid = append(invalid, toolerr.FieldError{Field: "month", Reason: "requires year"})
		}
	}
	return invalid
}

// dateFilters builds the range terms for year, month, date_start and
// date_end against col.
func dateFilters(col string, values map[string]any) []string {
	if col == "" {
		return nil
	}
	var out []string
	if y, ok := values["year"].(int64); ok {
		if m, ok := values["month"].(int64); ok && m >= 1 && m <= 12 {
			last := time.Date(int(y), time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
			out = append(out,
				fmt.Sprintf("(%s:>=:'%04d-%02d-01')", col, y, m),
				fmt.Sprintf("(%s:<=:'%04d-%02d-%02d')", col, y, m, last),
			)
		} else {
			out = append(out,
				fmt.Sprintf("(%s:>=:'%04d-01-01')", col, y),
				fmt.Sprintf("(%s:<=:'%04d-12-31')", col, y),
			)
		}
	}
	if s, ok := values["date_start"].(string); ok {
		out = append(out, fmt.Sprintf("(%s:>=:'%s')", col, filterEscaper.Replace(s)))
	}
	if s, ok := values["date_end"].(string); ok {
		out = append(out, fmt.Sprintf("(%s:<=:'%s')", col, filterEscaper.Replace(s)))
	}
	return out
}

// rawResources maps backend resources onto cache entities.
var rawResources = map[string]string{
	"thirdparties": "customers",
	"invoices":     "invoices",
	"orders":       "orders",
	"proposals":    "proposals",
	"products":     "products",
	"contacts":     "contacts",
	"projects":     "projects",
	"users":        "users",
	"status":       "status",
}

func bindRaw(b *Bound, values map[string]any) error {
	method, _ := values["method"].(string)
	endpoint, _ := values["endpoint"].(string)
	endpoint = strings.Trim(strings.TrimSpace(endpoint), "/")

	if endpoint == "" || strings.Contains(endpoint, "..") || strings.ContainsAny(endpoint, "?#") || strings.Contains(endpoint, "://") {
		return toolerr.Validation("", nil, []toolerr.FieldError{{Field: "endpoint", Reason: "must be a relative API path without query"}})
	}
	b.Method = strings.ToUpper(method)
	b.Path = endpoint
	b.Write = b.Method != http.MethodGet

	resource, _, _ := strings.Cut(endpoint, "/")
	if e, ok := rawResources[resource]; ok {
		b.Entity = e
	}

	if params, ok := values["params"].(map[string]any); ok {
		for k, v := range params {
			b.Query.Set(k, formatScalar(v))
		}
	}
	body, _ := values["data"].(map[string]any)
	return setBody(b, body)
}
