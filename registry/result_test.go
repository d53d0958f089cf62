package registry

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestShape_Created(t *testing.T) {
	d := mustLookup(t, "create_invoice")
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare number", `42`, `{"id":42}`},
		{"bare string", `"42"`, `{"id":"42"}`},
		{"object", `{"id":42,"ref":"FA-1"}`, `{"id":42}`},
		{"success envelope", `{"success":{"id":42}}`, `{"id":42}`},
		{"unrecognized", `{"ok":true}`, `{"ok":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Shape([]byte(tt.in), nil)
			if err != nil {
				t.Fatalf("Shape() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Shape() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestShape_Resolve(t *testing.T) {
	d := mustLookup(t, "resolve_product_ref")
	tests := []struct {
		name    string
		in      string
		status  string
		product string
	}{
		{"none", `[]`, "not_found", ""},
		{"single", `[{"id":1,"ref":"P-1"}]`, "ok", "P-1"},
		{"one exact among similar", `[{"id":1,"ref":"p-1"},{"id":2,"ref":"P-1"}]`, "ok", "P-1"},
		{"ambiguous", `[{"id":1,"ref":"P-1"},{"id":2,"ref":"P-1"}]`, "ambiguous", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Shape([]byte(tt.in), map[string]any{"ref": "P-1"})
			if err != nil {
				t.Fatalf("Shape() error = %v", err)
			}
			res := gjson.ParseBytes(got)
			if s := res.Get("status").String(); s != tt.status {
				t.Errorf("status = %q, want %q in %s", s, tt.status, got)
			}
			if tt.product != "" && res.Get("product.ref").String() != tt.product {
				t.Errorf("product = %s, want ref %s", res.Get("product").Raw, tt.product)
			}
			if tt.status == "not_found" && res.Get("ref").String() != "P-1" {
				t.Errorf("ref = %q, want P-1", res.Get("ref").String())
			}
			if tt.status == "ambiguous" && len(res.Get("products").Array()) != 2 {
				t.Errorf("products = %s, want both candidates", res.Get("products").Raw)
			}
		})
	}
}

func TestShape_AsIs(t *testing.T) {
	d := mustLookup(t, "get_invoices")
	in := []byte(`[{"id":1}]`)
	got, err := d.Shape(in, nil)
	if err != nil || string(got) != string(in) {
		t.Errorf("Shape() = %s, %v; want input unchanged", got, err)
	}
}
