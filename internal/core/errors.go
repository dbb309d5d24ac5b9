package core

import "errors"

var (
	// ErrDuplicateKey is returned by stores when a unique constraint rejects a write.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned when a query matches no rows.
	ErrNotFound = errors.New("not found")

	ErrDuplicateSubmission = errors.New("section already submitted for this date")
	ErrAlreadyFinalized    = errors.New("a report has already been submitted for this date")

	// ErrEmailFailed marks a notification failure after the report was saved.
	ErrEmailFailed = errors.New("email notification failed")
)
