package model

import "errors"

// Errors shared by every pipeline component. Callers match them with errors.Is;
// components add context with fmt.Errorf("...: %w", err).
var (
	// ErrInvalidArgument is returned for API misuse: bad stat type, k out of range, negative radius.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFitted is returned when an encoder or regressor is used before Fit.
	ErrNotFitted = errors.New("not fitted")

	// ErrSchemaMismatch is returned when required columns are absent or coordinate
	// systems of the joined datasets disagree.
	ErrSchemaMismatch = errors.New("schema mismatch")
)
