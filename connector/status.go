package connector

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jonwraymond/erpgate/toolerr"
)

// retriableStatus reports whether a status code is worth another attempt.
func retriableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

var mandatoryPattern = regexp.MustCompile(`(?i)field\s+'?"?([a-z0-9_]+)'?"?\s+(?:is\s+)?(?:mandatory|required|missing)`)

// statusError maps a non-2xx response onto a normalized error.
func statusError(resp *RawResponse, entity, id string, attempts int) *toolerr.Error {
	code := resp.StatusCode
	switch {
	case code == http.StatusNotFound:
		return toolerr.NotFound(entity, id)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		te := toolerr.Upstream(code, false, attempts)
		te.Message = "backend rejected credentials"
		return te
	case code == http.StatusTooManyRequests || code >= 500:
		return toolerr.Upstream(code, true, attempts)
	case code >= 400:
		missing, invalid := validationFields(resp.Body)
		te := toolerr.Validation("", missing, invalid)
		if len(missing) == 0 && len(invalid) == 0 {
			te.Message = "backend rejected the request"
		}
		return te
	default:
		return toolerr.Upstream(code, false, attempts)
	}
}

// validationFields extracts offending field names from a backend error body.
// It understands explicit missing_fields/invalid_fields arrays and the
// "Field x is mandatory" wording of Dolibarr error messages.
func validationFields(body []byte) ([]string, []toolerr.FieldError) {
	decoded, err := decodeBody(body)
	if err != nil {
		return nil, nil
	}
	doc := gjson.ParseBytes(decoded)

	var missing []string
	for _, f := range doc.Get("missing_fields").Array() {
		if f.Str != "" {
			missing = append(missing, f.Str)
		}
	}

	var invalid []toolerr.FieldError
	for _, f := range doc.Get("invalid_fields").Array() {
		switch {
		case f.IsObject():
			invalid = append(invalid, toolerr.FieldError{
				Field:  f.Get("field").Str,
				Reason: f.Get("message").Str,
			})
		case f.Type == gjson.String:
			invalid = append(invalid, toolerr.FieldError{Field: f.Str})
		}
	}

	if len(missing) == 0 && len(invalid) == 0 {
		for _, path := range []string{"error.message", "message", "error"} {
			msg := doc.Get(path)
			if msg.Type != gjson.String {
				continue
			}
			for _, m := range mandatoryPattern.FindAllStringSubmatch(msg.Str, -1) {
				missing = append(missing, strings.ToLower(m[1]))
			}
			break
		}
	}
	return missing, invalid
}
