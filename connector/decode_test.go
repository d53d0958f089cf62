package connector

import (
	"errors"
	"testing"
)

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    string
		wantErr error
	}{
		{name: "plain", in: []byte(`{"a":1}`), want: `{"a":1}`},
		{name: "whitespace", in: []byte("\n [1,2] \n"), want: `[1,2]`},
		{name: "empty", in: nil, want: "null"},
		{name: "not json", in: []byte("Internal Server Error"), wantErr: errMalformedBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBody(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("decodeBody() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeBody() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("decodeBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeBody_Gzip(t *testing.T) {
	got, err := decodeBody(gzipped(t, ` {"ref":"PR2401-0003"} `))
	if err != nil {
		t.Fatalf("decodeBody() error = %v", err)
	}
	if string(got) != `{"ref":"PR2401-0003"}` {
		t.Errorf("decodeBody() = %q", got)
	}
}

func TestDecodeBody_TruncatedGzip(t *testing.T) {
	full := gzipped(t, `{"a":"`+string(make([]byte, 64))+`"}`)
	if _, err := decodeBody(full[:len(full)/2]); err == nil {
		t.Error("decodeBody(truncated) error = nil, want error")
	}
}
