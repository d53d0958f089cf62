package registry

import (
	"encoding/json"
	"sort"

	"github.com/jonwraymond/erpgate/encode"
)

// InputSchema returns the JSON Schema of the tool's arguments, including
// the reserved output format selector.
func (d *Descriptor) InputSchema() map[string]any {
	props := make(map[string]any, len(d.Params)+1)
	var required []string
	for _, p := range d.Params {
		props[p.Name] = paramSchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}

	formats := encode.Names()
	enum := make([]any, len(formats))
	for i, f := range formats {
		enum[i] = f
	}
	props[ArgFormat] = map[string]any{
		"type":        "string",
		"description": "Response encoding",
		"enum":        enum,
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": d.OpenBody,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}

// RawInputSchema returns InputSchema encoded as JSON.
func (d *Descriptor) RawInputSchema() (json.RawMessage, error) {
	return json.Marshal(d.InputSchema())
}

func paramSchema(p ParamSpec) map[string]any {
	s := map[string]any{"type": string(p.Type)}
	if p.Description != "" {
		s["description"] = p.Description
	}
	if p.Default != nil {
		s["default"] = p.Default
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	if p.Minimum != nil {
		s["minimum"] = *p.Minimum
	}
	if p.Maximum != nil {
		s["maximum"] = *p.Maximum
	}
	if p.Items != nil {
		s["items"] = paramSchema(*p.Items)
	}
	if len(p.Fields) > 0 {
		props := make(map[string]any, len(p.Fields))
		var required []string
		for _, f := range p.Fields {
			props[f.Name] = paramSchema(f)
			if f.Required {
				required = append(required, f.Name)
			}
		}
		s["properties"] = props
		if len(required) > 0 {
			sort.Strings(required)
			s["required"] = required
		}
	}
	return s
}
