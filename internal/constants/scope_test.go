package constants

import "testing"

func TestScope_Valid(t *testing.T) {
	tests := []struct {
		name  string
		scope Scope
		want  bool
	}{
		{name: "local is valid", scope: ScopeLocal, want: true},
		{name: "global is valid", scope: ScopeGlobal, want: true},
		{name: "empty string is invalid", scope: Scope(""), want: false},
		{name: "both is no longer a scope", scope: Scope("both"), want: false},
		{name: "case matters", scope: Scope("Local"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scope.Valid(); got != tt.want {
				t.Errorf("Scope(%q).Valid() = %v, want %v", tt.scope, got, tt.want)
			}
		})
	}
}

func TestScope_String(t *testing.T) {
	if got := ScopeGlobal.String(); got != "global" {
		t.Errorf("ScopeGlobal.String() = %q, want %q", got, "global")
	}
}
