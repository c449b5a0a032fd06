package writer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Session name format: session_2025-10-30T14-30-00
var sessionNameRegex = regexp.MustCompile(`^session_\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}$`)

// ValidateSessionPath checks that sessionName is a plain session directory
// name that resolves inside outputDir. It rejects traversal, absolute paths
// and separators before matching the expected format.
func ValidateSessionPath(outputDir, sessionName string) error {
	switch {
	case sessionName == "":
		return fmt.Errorf("session name cannot be empty")
	case strings.Contains(sessionName, ".."):
		return fmt.Errorf("invalid session name: contains '..' (path traversal attempt)")
	case strings.ContainsAny(sessionName, "/\\"):
		return fmt.Errorf("invalid session name: must be directory name without path separators")
	case filepath.IsAbs(sessionName):
		return fmt.Errorf("invalid session name: must be relative path")
	case !sessionNameRegex.MatchString(sessionName):
		return fmt.Errorf("invalid session name format: expected 'session_YYYY-MM-DDTHH-MM-SS', got '%s'", sessionName)
	}

	absOutput, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(outputDir, sessionName))
	if err != nil {
		return fmt.Errorf("failed to resolve session path: %w", err)
	}
	// The separator suffix stops "/out/a" from matching "/out/a-b"
	if !strings.HasPrefix(absPath, absOutput+string(filepath.Separator)) {
		return fmt.Errorf("session path escapes output directory")
	}
	return nil
}
