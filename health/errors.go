package health

import "errors"

var (
	// ErrBackendStatus marks a backend check whose ERP status call failed.
	ErrBackendStatus = errors.New("health: erp status call failed")

	// ErrCheckTimeout marks a check that did not answer before the
	// readiness request's deadline.
	ErrCheckTimeout = errors.New("health: check did not answer in time")
)
