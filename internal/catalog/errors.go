package catalog

import "errors"

var (
	// ErrInvalidCatalogue is returned when a catalogue document fails
	// schema validation or a structural check.
	ErrInvalidCatalogue = errors.New("invalid catalogue")

	// ErrDuplicateKey is returned when two tracker signatures share a key
	// or two inline calls share a fragment.
	ErrDuplicateKey = errors.New("duplicate catalogue key")
)
