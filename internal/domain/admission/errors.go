package admission

import "errors"

var (
	ErrNotFound    = errors.New("admission not found")
	ErrNotAdmitted = errors.New("admission is not active")
)
