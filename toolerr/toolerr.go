package toolerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Kind classifies a normalized error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConnection Kind = "connection"
	KindUpstream   Kind = "upstream"
	KindInternal   Kind = "internal"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindValidation, KindNotFound, KindConnection, KindUpstream, KindInternal:
		return true
	}
	return false
}

// Error is the normalized failure envelope.
type Error struct {
	Kind          Kind
	Message       string
	Retriable     bool
	CorrelationID string

	// Detail is nil or one of ValidationDetail, NotFoundDetail,
	// ConnectionDetail, UpstreamDetail.
	Detail Detail
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.CorrelationID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (correlation_id=%s)", e.Kind, e.Message, e.CorrelationID)
}

// WithCorrelationID returns a copy of e carrying id. e itself is left
// untouched, so an error shared between callers can be stamped per caller.
func (e *Error) WithCorrelationID(id string) *Error {
	c := *e
	c.CorrelationID = id
	return &c
}

// Status maps the kind onto an HTTP-equivalent status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConnection:
		if d, ok := e.Detail.(ConnectionDetail); ok && d.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type envelope struct {
	Kind          Kind   `json:"kind"`
	Message       string `json:"message"`
	Retriable     bool   `json:"retriable"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Details       Detail `json:"details,omitempty"`
}

// MarshalJSON renders the caller-facing structure
// {kind, message, retriable, correlation_id, details?}.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{
		Kind:          e.Kind,
		Message:       e.Message,
		Retriable:     e.Retriable,
		CorrelationID: e.CorrelationID,
		Details:       e.Detail,
	})
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// NewCorrelationID returns a fresh opaque correlation identifier.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Validation builds a validation error listing the offending fields.
// Missing and invalid field names are sorted for stable output.
func Validation(message string, missing []string, invalid []FieldError) *Error {
	missing = append([]string(nil), missing...)
	sort.Strings(missing)
	invalid = append([]FieldError(nil), invalid...)
	sort.Slice(invalid, func(i, j int) bool { return invalid[i].Field < invalid[j].Field })

	if message == "" {
		message = validationMessage(missing, invalid)
	}
	var detail Detail
	if len(missing) > 0 || len(invalid) > 0 {
		detail = ValidationDetail{Missing: missing, Invalid: invalid}
	}
	return &Error{
		Kind:          KindValidation,
		Message:       message,
		CorrelationID: NewCorrelationID(),
		Detail:        detail,
	}
}

func validationMessage(missing []string, invalid []FieldError) string {
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		names := make([]string, len(invalid))
		for i, f := range invalid {
			names[i] = f.Field
		}
		parts = append(parts, "invalid fields: "+strings.Join(names, ", "))
	}
	if len(parts) == 0 {
		return "invalid request"
	}
	return strings.Join(parts, "; ")
}

// NotFound builds a not_found error for the given entity and id.
func NotFound(entity, id string) *Error {
	msg := "resource not found"
	if entity != "" {
		msg = entity + " not found"
		if id != "" {
			msg = fmt.Sprintf("%s %s not found", entity, id)
		}
	}
	return &Error{
		Kind:          KindNotFound,
		Message:       msg,
		CorrelationID: NewCorrelationID(),
		Detail:        NotFoundDetail{Entity: entity, ID: id},
	}
}

// Connection builds a retriable connection error.
func Connection(timeout bool, attempts int) *Error {
	msg := "backend unreachable"
	if timeout {
		msg = "backend request timed out"
	}
	return &Error{
		Kind:          KindConnection,
		Message:       msg,
		Retriable:     true,
		CorrelationID: NewCorrelationID(),
		Detail:        ConnectionDetail{Timeout: timeout, Attempts: attempts},
	}
}

// Upstream builds an upstream error. Backend payloads stay in operator logs,
// never in the message.
func Upstream(status int, retriable bool, attempts int) *Error {
	return &Error{
		Kind:          KindUpstream,
		Message:       "backend error",
		Retriable:     retriable,
		CorrelationID: NewCorrelationID(),
		Detail:        UpstreamDetail{Status: status, Attempts: attempts},
	}
}

// Internal builds an internal error with a generic message.
func Internal() *Error {
	return &Error{
		Kind:          KindInternal,
		Message:       "internal error",
		CorrelationID: NewCorrelationID(),
	}
}

// From returns err unchanged when it already carries an *Error, and
// otherwise converts it into a fresh internal error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if te, ok := As(err); ok {
		return te
	}
	return Internal()
}
