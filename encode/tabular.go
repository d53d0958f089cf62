package encode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// numberPattern matches the JSON number grammar. Strings matching it are
// quoted in cells so they decode back as strings.
var numberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

var headerPattern = regexp.MustCompile(`^\[([0-9]+)\]\{(.*)\}:$`)

// EncodeTabular renders a JSON array of flat records as
//
//	[N]{field1,field2,...}:
//	v1,v2,...
//
// Field order comes from the first record. Every record must carry exactly
// the same fields in the same order, and every value must be a string,
// number, boolean or null; otherwise ErrNotTabular is returned.
func EncodeTabular(data []byte) (string, int, error) {
	if !gjson.ValidBytes(data) {
		return "", 0, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return "", 0, ErrNotTabular
	}

	records := root.Array()
	if len(records) == 0 {
		return "[0]{}:", 0, nil
	}

	fields, err := recordFields(records[0])
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%d]{%s}:", len(records), strings.Join(fields, ","))

	for _, rec := range records {
		if !rec.IsObject() {
			return "", 0, ErrNotTabular
		}
		b.WriteByte('\n')

		i := 0
		var cellErr error
		rec.ForEach(func(key, value gjson.Result) bool {
			if i >= len(fields) || key.Str != fields[i] {
				cellErr = ErrNotTabular
				return false
			}
			if i > 0 {
				b.WriteByte(',')
			}
			cell, err := encodeCell(value)
			if err != nil {
				cellErr = err
				return false
			}
			b.WriteString(cell)
			i++
			return true
		})
		if cellErr != nil {
			return "", 0, cellErr
		}
		if i != len(fields) {
			return "", 0, ErrNotTabular
		}
	}

	return b.String(), len(records), nil
}

func recordFields(rec gjson.Result) ([]string, error) {
	if !rec.IsObject() {
		return nil, ErrNotTabular
	}
	var fields []string
	seen := make(map[string]bool)
	ok := true
	rec.ForEach(func(key, _ gjson.Result) bool {
		name := key.Str
		if !validFieldName(name) || seen[name] {
			ok = false
			return false
		}
		seen[name] = true
		fields = append(fields, name)
		return true
	})
	if !ok || len(fields) == 0 {
		return nil, ErrNotTabular
	}
	return fields, nil
}

func validFieldName(name string) bool {
	if name == "" || name != strings.TrimSpace(name) {
		return false
	}
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(",{}:\"\\", r) {
			return false
		}
	}
	return true
}

func encodeCell(v gjson.Result) (string, error) {
	switch v.Type {
	case gjson.Null:
		return "", nil
	case gjson.True:
		return "true", nil
	case gjson.False:
		return "false", nil
	case gjson.Number:
		return v.Raw, nil
	case gjson.String:
		if needsQuote(v.Str) {
			return quote(v.Str)
		}
		return v.Str, nil
	default:
		return "", ErrNotTabular
	}
}

func needsQuote(s string) bool {
	if s == "" || s != strings.TrimSpace(s) {
		return true
	}
	switch s {
	case "true", "false", "null":
		return true
	}
	if numberPattern.MatchString(s) {
		return true
	}
	for _, r := range s {
		if r < 0x20 || r == ',' || r == '"' || r == '\\' {
			return true
		}
	}
	return false
}

func quote(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// DecodeTabular parses a payload produced by EncodeTabular into a slice of
// records. Numbers decode as json.Number, empty cells as nil.
func DecodeTabular(payload string) ([]any, error) {
	header, body, _ := strings.Cut(payload, "\n")
	m := headerPattern.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("%w: bad header", ErrMalformedTable)
	}
	count, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad count", ErrMalformedTable)
	}

	records := make([]any, 0, count)
	if count == 0 {
		return records, nil
	}

	fields := strings.Split(m[2], ",")
	rows := strings.Split(body, "\n")
	if len(rows) != count {
		return nil, fmt.Errorf("%w: header declares %d rows, found %d", ErrMalformedTable, count, len(rows))
	}

	for n, row := range rows {
		cells, err := splitRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedTable, n+1, err)
		}
		if len(cells) != len(fields) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrMalformedTable, n+1, len(cells), len(fields))
		}
		rec := make(map[string]any, len(fields))
		for i, f := range fields {
			rec[f] = cells[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

func splitRow(row string) ([]any, error) {
	var cells []any
	for {
		if strings.HasPrefix(row, `"`) {
			end := closingQuote(row)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string")
			}
			var s string
			if err := json.Unmarshal([]byte(row[:end+1]), &s); err != nil {
				return nil, err
			}
			cells = append(cells, s)
			row = row[end+1:]
			if row == "" {
				return cells, nil
			}
			if row[0] != ',' {
				return nil, fmt.Errorf("unexpected %q after quoted cell", row[0])
			}
			row = row[1:]
			continue
		}

		raw, rest, more := strings.Cut(row, ",")
		cells = append(cells, bareValue(raw))
		if !more {
			return cells, nil
		}
		row = rest
	}
}

// closingQuote returns the index of the quote ending the string that opens
// at s[0], or -1.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func bareValue(raw string) any {
	switch raw {
	case "":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if numberPattern.MatchString(raw) {
		return json.Number(raw)
	}
	return raw
}
