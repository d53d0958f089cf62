// Package encode renders tool results as text.
//
// Three formats are supported. FormatTabular ("toon") is the token-efficient
// default: a list of flat records becomes a header naming the fields once,
// followed by one comma-separated row per record:
//
//	[2]{id,ref,total_ttc}:
//	1,FA2401-0001,"120.00"
//	2,FA2401-0002,
//
// Strings that would read back as something else (numbers, booleans, empty
// strings, values containing commas or quotes) are written as JSON string
// literals; null is an empty cell. FormatJSON and FormatJSONCompact re-emit
// the backend JSON, preserving key order and exact number text.
//
// Tabular output is an optimization. When the data is not a homogeneous list
// of flat records the encoder falls back to FormatJSON and flags the response,
// so no value is ever dropped.
package encode
