package crawler

import "errors"

var (
	// ErrInvalidURL is returned when a target URL cannot be scanned.
	ErrInvalidURL = errors.New("invalid target URL")

	// ErrTargetUnreachable is returned when a page cannot be fetched.
	ErrTargetUnreachable = errors.New("target unreachable")

	// ErrUnexpectedStatus is returned when a page answers with status >= 400.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)
