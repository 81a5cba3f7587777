package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrMigrationLocked = errors.New("another migration run holds the advisory lock")
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrUnsafeInput     = errors.New("input rejected by injection check")
)
