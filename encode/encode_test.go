package encode

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"toon", FormatTabular, false},
		{"TOKEN", FormatTabular, false},
		{"json", FormatJSON, false},
		{" compact ", FormatJSONCompact, false},
		{"minified", FormatJSONCompact, false},
		{"json_compact", FormatJSONCompact, false},
		{"yaml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func invoiceRows(n int) []byte {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = fmt.Sprintf(`{"id":%d,"ref":"FA2401-%04d","socid":542,"total_ttc":"%d.50","paye":0,"note":null}`, i+1, i+1, 100+i)
	}
	return []byte("[" + strings.Join(rows, ",") + "]")
}

func TestEncoder_TabularHeaderOnce(t *testing.T) {
	enc := NewEncoder(FormatTabular)

	resp, err := enc.Encode(invoiceRows(12), "")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if resp.Format != FormatTabular {
		t.Fatalf("Format = %q, want %q", resp.Format, FormatTabular)
	}
	if resp.Rows != 12 {
		t.Errorf("Rows = %d, want 12", resp.Rows)
	}

	lines := strings.Split(resp.Payload, "\n")
	if len(lines) != 13 {
		t.Fatalf("lines = %d, want header + 12 rows", len(lines))
	}
	if lines[0] != "[12]{id,ref,socid,total_ttc,paye,note}:" {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Count(resp.Payload, "total_ttc") != 1 {
		t.Error("field names must appear exactly once")
	}
	if lines[1] != `1,FA2401-0001,542,"100.50",0,` {
		t.Errorf("row 1 = %q", lines[1])
	}
}

func TestEncoder_TabularRoundTripMatchesJSON(t *testing.T) {
	inputs := map[string]string{
		"mixed scalars": `[{"a":1,"b":"x","c":true,"d":null},{"a":2.5e3,"b":"","c":false,"d":"null"}]`,
		"tricky strings": `[{"s":"a,b","t":" padded "},{"s":"say \"hi\"","t":"line\nbreak"},{"s":"42","t":"true"}]`,
		"unicode":        `[{"name":"Société Générale","city":"Zürich"},{"name":"東京","city":"<&>"}]`,
		"empty list":     `[]`,
		"single field":   `[{"x":null},{"x":"-"}]`,
	}

	enc := NewEncoder(FormatJSON)
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			tab, err := enc.Encode([]byte(in), FormatTabular)
			if err != nil {
				t.Fatalf("Encode(tabular) error = %v", err)
			}
			if tab.Format != FormatTabular {
				t.Fatalf("Format = %q, want tabular (payload %q)", tab.Format, tab.Payload)
			}
			js, err := enc.Encode([]byte(in), FormatJSON)
			if err != nil {
				t.Fatalf("Encode(json) error = %v", err)
			}

			fromTab, err := Decode(tab.Payload, FormatTabular)
			if err != nil {
				t.Fatalf("Decode(tabular) error = %v\npayload:\n%s", err, tab.Payload)
			}
			fromJSON, err := Decode(js.Payload, FormatJSON)
			if err != nil {
				t.Fatalf("Decode(json) error = %v", err)
			}
			if !reflect.DeepEqual(fromTab, fromJSON) {
				t.Errorf("tabular decode = %#v\njson decode = %#v", fromTab, fromJSON)
			}
		})
	}
}

func TestEncoder_FallsBackToJSON(t *testing.T) {
	inputs := map[string]string{
		"heterogeneous fields": `[{"a":1,"b":2},{"a":1,"c":2}]`,
		"field order differs":  `[{"a":1,"b":2},{"b":2,"a":1}]`,
		"extra field":          `[{"a":1},{"a":1,"b":2}]`,
		"nested object":        `[{"a":{"x":1}}]`,
		"nested array":         `[{"lines":[1,2]}]`,
		"not records":          `[1,2,3]`,
		"single object":        `{"id":1,"ref":"X"}`,
		"scalar":               `"ok"`,
		"bad field name":       `[{"a,b":1}]`,
		"empty record":         `[{}]`,
	}

	enc := NewEncoder(FormatTabular)
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			resp, err := enc.Encode([]byte(in), FormatTabular)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if resp.Format != FormatJSON || !resp.Fallback {
				t.Fatalf("Format = %q Fallback = %v, want json fallback", resp.Format, resp.Fallback)
			}

			got, err := Decode(resp.Payload, FormatJSON)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			want, _ := Decode(in, FormatJSON)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("fallback lost data: got %#v, want %#v", got, want)
			}
		})
	}
}

func TestEncoder_JSONCompactPreservesOrder(t *testing.T) {
	enc := NewEncoder(FormatTabular)
	in := `{ "z": 1,  "a": [ 1.50, 2 ] }`

	resp, err := enc.Encode([]byte(in), FormatJSONCompact)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if resp.Payload != `{"z":1,"a":[1.50,2]}` {
		t.Errorf("Payload = %q", resp.Payload)
	}
	if resp.Rows != 1 {
		t.Errorf("Rows = %d, want 1", resp.Rows)
	}
}

func TestEncoder_Errors(t *testing.T) {
	enc := NewEncoder(FormatJSON)

	if _, err := enc.Encode([]byte(`{"broken":`), FormatJSON); err == nil {
		t.Error("Encode(invalid json) error = nil")
	}
	if _, err := enc.Encode([]byte(`[]`), Format("xml")); err == nil {
		t.Error("Encode(unknown format) error = nil")
	}

	resp, err := enc.Encode(nil, FormatJSON)
	if err != nil {
		t.Fatalf("Encode(empty) error = %v", err)
	}
	if resp.Payload != "null" || resp.Rows != 0 {
		t.Errorf("Encode(empty) = %q rows=%d, want null rows=0", resp.Payload, resp.Rows)
	}
}

func TestNewEncoder_InvalidDefault(t *testing.T) {
	if got := NewEncoder("bogus").DefaultFormat(); got != FormatTabular {
		t.Errorf("DefaultFormat() = %q, want %q", got, FormatTabular)
	}
}

func TestDecodeTabular_Malformed(t *testing.T) {
	tests := map[string]string{
		"no header":      "1,2",
		"row mismatch":   "[2]{a}:\n1",
		"cell mismatch":  "[1]{a,b}:\n1",
		"unterminated":   "[1]{a}:\n\"abc",
		"junk after str": "[1]{a,b}:\n\"x\"y,1",
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeTabular(payload); err == nil {
				t.Errorf("DecodeTabular(%q) error = nil", payload)
			}
		})
	}
}

func TestDecode_NumbersAsJSONNumber(t *testing.T) {
	v, err := Decode("[1]{n}:\n12.50", FormatTabular)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	rec := v.([]any)[0].(map[string]any)
	if rec["n"] != json.Number("12.50") {
		t.Errorf("n = %#v, want json.Number(\"12.50\")", rec["n"])
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(strings.Repeat("x", 40)); got != 10 {
		t.Errorf("EstimateTokens() = %d, want 10", got)
	}
}
