package types

import "errors"

// Error kinds shared by the store and its callers. Wrap them with fmt.Errorf
// and %w; test with errors.Is.
var (
	// ErrNotFound is returned when no record exists for a challenge name.
	ErrNotFound = errors.New("challenge not found")

	// ErrAlreadyExists is returned when creating a challenge that is already persisted.
	ErrAlreadyExists = errors.New("challenge already exists")

	// ErrCorruptRecord is returned when a persisted record cannot be parsed.
	// Corrupt records are never repaired or removed automatically.
	ErrCorruptRecord = errors.New("corrupt challenge record")

	// ErrContractViolation is returned for invalid identifiers or values,
	// before any mutation takes place.
	ErrContractViolation = errors.New("contract violation")
)
