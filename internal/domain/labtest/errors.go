package labtest

import "errors"

var (
	ErrNotFound      = errors.New("lab test not found")
	ErrFinalized     = errors.New("lab test is already completed or cancelled")
	ErrMissingResult = errors.New("a result is required to complete a lab test")
)
