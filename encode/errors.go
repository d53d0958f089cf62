package encode

import "errors"

var (
	// ErrUnknownFormat indicates a format name that is neither canonical nor an alias.
	ErrUnknownFormat = errors.New("encode: unknown format")

	// ErrInvalidJSON indicates the input is not a JSON document.
	ErrInvalidJSON = errors.New("encode: input is not valid JSON")

	// ErrNotTabular indicates data that the tabular format cannot represent
	// losslessly. Encode never returns it; it falls back to JSON instead.
	ErrNotTabular = errors.New("encode: data is not a homogeneous list of flat records")

	// ErrMalformedTable indicates a tabular payload that cannot be decoded.
	ErrMalformedTable = errors.New("encode: malformed tabular payload")
)
