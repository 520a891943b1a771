package model

import "errors"

var (
	// ErrUnknownCategory is returned when a tracker category, cookie class,
	// detection channel, signal category, confidence or regulation is not
	// one of the enumerated values.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnknownSeverity is returned when a severity string is not one of
	// info, warning or critical.
	ErrUnknownSeverity = errors.New("unknown severity")
)
