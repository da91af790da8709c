package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error markers classify remote-stage failures. Stage triggers surface them
// to the operator as a single batch-level message; they never escape a
// trigger boundary unwrapped.
var (
	// ErrNetwork covers transport failures, including timeouts.
	ErrNetwork = errors.New("network failure")
	// ErrMalformedResponse covers responses whose shape is not recognized.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrValidation covers locally detected input problems, e.g. a missing
	// rejection reason on a needs-review selection.
	ErrValidation = errors.New("validation failure")
	// ErrPartialBatch marks a publish chunk failure after earlier chunks
	// already succeeded.
	ErrPartialBatch = errors.New("partial batch failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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
