package store

import (
	"errors"
	"testing"
)

func TestParseLabel(t *testing.T) {
	for _, l := range Labels() {
		got, err := ParseLabel(string(l))
		if err != nil || got != l {
			t.Errorf("ParseLabel(%q) = %q, %v", l, got, err)
		}
	}

	for _, bad := range []string{"", "user", "Invalid", "User {id: 1}) DETACH DELETE (n", "User:Admin"} {
		if _, err := ParseLabel(bad); !errors.Is(err, ErrInvalidLabel) {
			t.Errorf("ParseLabel(%q) error = %v, want ErrInvalidLabel", bad, err)
		}
	}
}

func TestParseRelType(t *testing.T) {
	for _, r := range RelTypes() {
		got, err := ParseRelType(string(r))
		if err != nil || got != r {
			t.Errorf("ParseRelType(%q) = %q, %v", r, got, err)
		}
	}

	for _, bad := range []string{"", "impacts", "OWNS", "IMPACTS|PERFORMED"} {
		if _, err := ParseRelType(bad); !errors.Is(err, ErrInvalidRelationshipType) {
			t.Errorf("ParseRelType(%q) error = %v, want ErrInvalidRelationshipType", bad, err)
		}
	}
}
