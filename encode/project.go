package encode

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Projection selects which record fields survive into a result.
type Projection struct {
	// Fields lists the kept fields in output order. Empty keeps everything.
	Fields []string

	// Nested projects array-of-record fields, keyed by field name
	// (for example invoice "lines").
	Nested map[string][]string
}

// IsZero reports whether p keeps every field.
func (p Projection) IsZero() bool {
	return len(p.Fields) == 0
}

// Apply projects a record, or each record of a list. Non-record values are
// returned unchanged. Output field order follows p.Fields, so projected
// lists of complete records are homogeneous.
func (p Projection) Apply(data []byte) ([]byte, error) {
	if p.IsZero() || !gjson.ValidBytes(data) {
		return data, nil
	}
	root := gjson.ParseBytes(data)
	switch {
	case root.IsArray():
		return p.applyList(root)
	case root.IsObject():
		return p.applyRecord(root)
	default:
		return data, nil
	}
}

func (p Projection) applyList(list gjson.Result) ([]byte, error) {
	out := []byte("[]")
	var err error
	for _, item := range list.Array() {
		raw := []byte(item.Raw)
		if item.IsObject() {
			if raw, err = p.applyRecord(item); err != nil {
				return nil, err
			}
		}
		if out, err = sjson.SetRawBytes(out, "-1", raw); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p Projection) applyRecord(rec gjson.Result) ([]byte, error) {
	values := make(map[string]gjson.Result)
	rec.ForEach(func(key, value gjson.Result) bool {
		if _, dup := values[key.Str]; !dup {
			values[key.Str] = value
		}
		return true
	})

	out := []byte("{}")
	var err error
	for _, field := range p.Fields {
		value, ok := values[field]
		if !ok {
			continue
		}
		raw := []byte(value.Raw)
		if sub, ok := p.Nested[field]; ok && value.IsArray() {
			if raw, err = (Projection{Fields: sub}).applyList(value); err != nil {
				return nil, err
			}
		}
		if out, err = sjson.SetRawBytes(out, escapePath(field), raw); err != nil {
			return nil, err
		}
	}
	return out, nil
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`)

func escapePath(field string) string {
	return pathEscaper.Replace(field)
}
