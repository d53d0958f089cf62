package encode

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Response is an encoded tool result.
type Response struct {
	// Format is the representation actually produced.
	Format Format `json:"format"`

	// Payload is the encoded text.
	Payload string `json:"-"`

	// Rows is the number of records (1 for a single object, 0 for null).
	Rows int `json:"rows"`

	// Truncated is set when the backend may hold more rows than returned.
	Truncated bool `json:"truncated,omitempty"`

	// Fallback is set when the tabular format was requested but the data
	// required JSON.
	Fallback bool `json:"fallback,omitempty"`

	// EstimatedTokens approximates the payload size in model tokens.
	EstimatedTokens int `json:"estimated_tokens"`
}

// Encoder renders raw JSON results in a requested format.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: Encode fails only on input that is not JSON. A tabular request
//     that cannot be honored falls back to FormatJSON.
type Encoder struct {
	defaultFormat Format
}

// NewEncoder returns an encoder that uses def when no format is requested.
// An invalid def is replaced by FormatTabular.
func NewEncoder(def Format) *Encoder {
	if !def.Valid() {
		def = FormatTabular
	}
	return &Encoder{defaultFormat: def}
}

// DefaultFormat returns the format used for empty requests.
func (e *Encoder) DefaultFormat() Format {
	return e.defaultFormat
}

// Encode renders data in format f (or the default when f is empty).
func (e *Encoder) Encode(data []byte, f Format) (Response, error) {
	if f == "" {
		f = e.defaultFormat
	}
	if !f.Valid() {
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("null")
	}
	if !gjson.ValidBytes(data) {
		return Response{}, ErrInvalidJSON
	}

	resp := Response{Format: f, Rows: countRows(data)}

	if f == FormatTabular {
		payload, _, err := EncodeTabular(data)
		if err == nil {
			resp.Payload = payload
			resp.EstimatedTokens = EstimateTokens(payload)
			return resp, nil
		}
		resp.Format = FormatJSON
		resp.Fallback = true
	}

	var buf bytes.Buffer
	var err error
	if resp.Format == FormatJSONCompact {
		err = json.Compact(&buf, data)
	} else {
		err = json.Indent(&buf, data, "", "  ")
	}
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	resp.Payload = buf.String()
	resp.EstimatedTokens = EstimateTokens(resp.Payload)
	return resp, nil
}

func countRows(data []byte) int {
	r := gjson.ParseBytes(data)
	switch {
	case r.IsArray():
		return len(r.Array())
	case r.Type == gjson.Null:
		return 0
	default:
		return 1
	}
}

// Decode parses a payload produced by Encode back into Go values.
// JSON numbers decode as json.Number in every format.
func Decode(payload string, f Format) (any, error) {
	switch f {
	case FormatTabular:
		return DecodeTabular(payload)
	case FormatJSON, FormatJSONCompact:
		dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// EstimateTokens approximates token count as one token per four bytes.
func EstimateTokens(s string) int {
	return len(s) / 4
}
