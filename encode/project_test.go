package encode

import "testing"

func TestProjection_Apply(t *testing.T) {
	p := Projection{
		Fields: []string{"id", "ref", "lines"},
		Nested: map[string][]string{"lines": {"fk_product", "qty"}},
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "list keeps projection order",
			in:   `[{"ref":"A","extra":true,"id":1},{"id":2,"ref":"B"}]`,
			want: `[{"id":1,"ref":"A"},{"id":2,"ref":"B"}]`,
		},
		{
			name: "nested lines",
			in:   `{"id":7,"lines":[{"qty":2,"fk_product":9,"desc":"x"}],"socid":1}`,
			want: `{"id":7,"lines":[{"fk_product":9,"qty":2}]}`,
		},
		{
			name: "missing fields skipped",
			in:   `{"ref":"only"}`,
			want: `{"ref":"only"}`,
		},
		{
			name: "scalar untouched",
			in:   `42`,
			want: `42`,
		},
		{
			name: "non-record list items kept",
			in:   `[1,{"id":1,"x":2}]`,
			want: `[1,{"id":1}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Apply([]byte(tt.in))
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Apply() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProjection_ZeroKeepsEverything(t *testing.T) {
	in := []byte(`{"b":1,"a":2}`)
	got, err := Projection{}.Apply(in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if string(got) != string(in) {
		t.Errorf("Apply() = %s, want input unchanged", got)
	}
}
