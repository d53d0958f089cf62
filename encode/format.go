package encode

import (
	"fmt"
	"strings"
)

// Format selects the textual representation of a result.
type Format string

const (
	// FormatTabular states field names once, then one positional row per record.
	FormatTabular Format = "toon"
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
	// FormatJSONCompact is JSON without insignificant whitespace.
	FormatJSONCompact Format = "json_compact"
)

var formatAliases = map[string]Format{
	"toon":         FormatTabular,
	"token":        FormatTabular,
	"tabular":      FormatTabular,
	"json":         FormatJSON,
	"pretty":       FormatJSON,
	"json_compact": FormatJSONCompact,
	"json-compact": FormatJSONCompact,
	"compact":      FormatJSONCompact,
	"minified":     FormatJSONCompact,
}

// ParseFormat resolves a format name or alias, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f, ok := formatAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
	return f, nil
}

// Valid reports whether f is a canonical format.
func (f Format) Valid() bool {
	switch f {
	case FormatTabular, FormatJSON, FormatJSONCompact:
		return true
	}
	return false
}

// Names returns the canonical format names.
func Names() []string {
	return []string{string(FormatTabular), string(FormatJSON), string(FormatJSONCompact)}
}
