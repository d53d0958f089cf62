package config

import "errors"

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("config: invalid configuration")

	// ErrBadEnv is returned when an environment override cannot be parsed.
	ErrBadEnv = errors.New("config: bad environment value")
)
