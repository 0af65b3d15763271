// Package services defines the error taxonomy shared by the external-service
// clients and the pipeline.
package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOracleParse marks a malformed or schema-violating correspondence
	// response. Recovered by re-queuing the batch's ids with a capped retry
	// budget; never coerced into a missing judgment directly.
	ErrOracleParse = errors.New("oracle parse error")

	// ErrTransient marks a recoverable external call failure, retried with
	// backoff and eventually degraded to a sentinel output.
	ErrTransient = errors.New("transient failure")

	// ErrCheckpointIO marks a checkpoint persistence failure. Fatal: losing
	// durability silently is worse than stopping the run.
	ErrCheckpointIO = errors.New("checkpoint io error")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
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

// Fatal reports whether the error must abort the run instead of degrading to
// a marked terminal state.
func Fatal(err error) bool {
	return errors.Is(err, ErrCheckpointIO)
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
