package store

import (
	"fmt"
	"strings"
)

// Label is the closed set of node labels. Labels are interpolated into
// backend queries, so every value must pass Valid before it reaches one.
type Label string

const (
	LabelUser     Label = "User"
	LabelActivity Label = "Activity"
	LabelLocation Label = "Location"
	LabelSource   Label = "Source"
	LabelResource Label = "Resource"
)

// RelType is the closed set of relationship types. Like Label, it is
// interpolated into backend queries and must pass Valid first.
type RelType string

const (
	RelPerformed RelType = "PERFORMED"
	RelLocatedAt RelType = "LOCATED_AT"
	RelHasSource RelType = "HAS_SOURCE"
	RelImpacts   RelType = "IMPACTS"
)

var allowedLabels = map[Label]bool{
	LabelUser:     true,
	LabelActivity: true,
	LabelLocation: true,
	LabelSource:   true,
	LabelResource: true,
}

var allowedRelTypes = map[RelType]bool{
	RelPerformed: true,
	RelLocatedAt: true,
	RelHasSource: true,
	RelImpacts:   true,
}

// Labels returns the allowlisted labels in declaration order.
func Labels() []Label {
	return []Label{LabelUser, LabelActivity, LabelLocation, LabelSource, LabelResource}
}

// RelTypes returns the allowlisted relationship types in declaration order.
func RelTypes() []RelType {
	return []RelType{RelPerformed, RelLocatedAt, RelHasSource, RelImpacts}
}

// Valid reports whether l is in the label allowlist.
func (l Label) Valid() bool { return allowedLabels[l] }

// Valid reports whether r is in the relationship allowlist.
func (r RelType) Valid() bool { return allowedRelTypes[r] }

// ParseLabel converts untrusted input into a Label. Matching is exact;
// "user" is not "User".
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q (valid: %s)", ErrInvalidLabel, s, joinLabels())
	}
	return l, nil
}

// ParseRelType converts untrusted input into a RelType.
func ParseRelType(s string) (RelType, error) {
	r := RelType(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q (valid: %s)", ErrInvalidRelationshipType, s, joinRelTypes())
	}
	return r, nil
}

// checkLabel is the backend-side guard. Label is a string type, so a caller
// can convert arbitrary input without ParseLabel; backends never trust that.
func checkLabel(l Label) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, string(l))
	}
	return nil
}

func checkRelType(r RelType) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRelationshipType, string(r))
	}
	return nil
}

func joinLabels() string {
	parts := make([]string, 0, len(allowedLabels))
	for _, l := range Labels() {
		parts = append(parts, string(l))
	}
	return strings.Join(parts, ", ")
}

func joinRelTypes() string {
	parts := make([]string, 0, len(allowedRelTypes))
	for _, r := range RelTypes() {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ", ")
}
