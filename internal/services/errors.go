package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks bad input: empty EDLs, degenerate ranges, missing sources.
	ErrValidation = errors.New("validation error")
	// ErrExternalTool marks a transcoder subprocess that exited non-zero.
	ErrExternalTool = errors.New("external tool error")
	// ErrTimeout marks a transcoder subprocess that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrIntegrity marks expected outputs that are missing or empty despite a
	// reported-successful run.
	ErrIntegrity = errors.New("artifact integrity error")
	// ErrNotFound marks references to artifacts or jobs that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks failures worth retrying without operator action.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsValidation reports whether err is classified as bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// Diagnostic returns the human-readable failure text persisted into status
// records: the full error string with the sentinel prefix trimmed.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrValidation, ErrExternalTool, ErrTimeout, ErrIntegrity, ErrNotFound, ErrTransient} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
