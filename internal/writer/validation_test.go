package writer

import (
	"strings"
	"testing"
)

func TestValidateSessionPath_Valid(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"session_2025-10-30T14-30-00",
		"session_2024-01-01T00-00-00",
	} {
		if err := ValidateSessionPath(dir, name); err != nil {
			t.Errorf("ValidateSessionPath(%q) returned unexpected error: %v", name, err)
		}
	}
}

func TestValidateSessionPath_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // substring of expected error message
	}{
		{"empty", "", "cannot be empty"},
		{"traversal", "../../etc/passwd", "path traversal"},
		{"traversal after valid prefix", "session_2025-10-30T14-30-00/../secret", "path traversal"},
		{"windows traversal", "..\\..\\Windows", "path traversal"},
		{"absolute unix", "/etc/passwd", "without path separators"},
		{"absolute windows", "C:\\Windows\\System32", "without path separators"},
		{"mixed separators", "session/2025\\10", "without path separators"},
		{"no prefix", "my-session", "invalid session name format"},
		{"missing separators", "session_20251030T143000", "invalid session name format"},
		{"null byte", "session_2025-10-30T14-30-00\x00", "invalid session name format"},
	}

	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionPath(dir, tt.input)
			if err == nil {
				t.Fatalf("ValidateSessionPath(%q) expected error containing %q, got nil", tt.input, tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ValidateSessionPath(%q) error = %v, want substring %q", tt.input, err, tt.want)
			}
		})
	}
}
