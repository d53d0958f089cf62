package connector

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"
)

// maxDecodedBody caps a decompressed body.
const maxDecodedBody = 64 << 20

var (
	errMalformedBody = errors.New("connector: response body is not valid JSON")
	errBodyTooLarge  = errors.New("connector: decompressed body exceeds limit")
)

var gzipMagic = []byte{0x1f, 0x8b}

// decodeBody decompresses gzip content detected by its magic bytes, whatever
// Content-Encoding says, and returns the JSON text. An empty body decodes
// as JSON null.
func decodeBody(body []byte) ([]byte, error) {
	if bytes.HasPrefix(body, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("connector: gzip header: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, maxDecodedBody+1))
		if err != nil {
			return nil, fmt.Errorf("connector: gunzip: %w", err)
		}
		if len(out) > maxDecodedBody {
			return nil, errBodyTooLarge
		}
		body = out
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []byte("null"), nil
	}
	if !gjson.ValidBytes(body) {
		return nil, errMalformedBody
	}
	return body, nil
}
