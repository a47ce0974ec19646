package prescription

import "errors"

var (
	ErrNotFound      = errors.New("prescription not found")
	ErrNotActive     = errors.New("prescription is not active")
	ErrNoMedications = errors.New("prescription requires at least one medication")
)
