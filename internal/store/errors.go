package store

import "errors"

// Sentinel errors for graph operations. Callers match them with errors.Is;
// returned errors wrap them with the offending value.
var (
	// ErrInvalidLabel is returned when a node label is not allowlisted.
	ErrInvalidLabel = errors.New("invalid node label")

	// ErrInvalidRelationshipType is returned when a relationship type is not allowlisted.
	ErrInvalidRelationshipType = errors.New("invalid relationship type")

	// ErrDanglingReference is returned when an edge endpoint does not exist.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrInvalidWeight is returned for negative, NaN or infinite edge weights.
	ErrInvalidWeight = errors.New("invalid edge weight")

	// ErrMissingID is returned when properties carry no usable "id".
	ErrMissingID = errors.New("node id is required")

	// ErrInvalidProperty is returned for property values that are not
	// string, number or boolean.
	ErrInvalidProperty = errors.New("invalid property value")

	// ErrLabelConflict is returned when a node is re-upserted under a
	// different label than the one it was created with.
	ErrLabelConflict = errors.New("node label is immutable")
)
