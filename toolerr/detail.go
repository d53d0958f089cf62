package toolerr

// Detail is the kind-specific payload of an Error.
// The set of implementations is closed to this package.
type Detail interface {
	detail()
}

// FieldError names one argument that failed validation.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationDetail lists the fields that were missing or malformed.
type ValidationDetail struct {
	Missing []string     `json:"missing_fields,omitempty"`
	Invalid []FieldError `json:"invalid_fields,omitempty"`
}

// NotFoundDetail identifies the record that was not found.
type NotFoundDetail struct {
	Entity string `json:"entity,omitempty"`
	ID     string `json:"id,omitempty"`
}

// ConnectionDetail describes a transport failure.
type ConnectionDetail struct {
	Timeout  bool `json:"timeout"`
	Attempts int  `json:"attempts,omitempty"`
}

// UpstreamDetail describes a backend-side failure.
type UpstreamDetail struct {
	Status   int `json:"status,omitempty"`
	Attempts int `json:"attempts,omitempty"`
}

func (ValidationDetail) detail() {}
func (NotFoundDetail) detail()   {}
func (ConnectionDetail) detail() {}
func (UpstreamDetail) detail()   {}
