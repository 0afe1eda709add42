package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying (network blips, rate limits).
	ErrTransient = errors.New("transient failure")
	// ErrNotFound marks resolution misses; fatal to the item, never retried.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks structurally invalid service output or missing
	// required fields; fatal to the item.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks artifact filename collisions under create-missing mode.
	ErrConflict = errors.New("conflict")
	// ErrRegistryIO marks corrupt or unwritable registry state; fatal to the
	// whole run so existing progress is never silently discarded.
	ErrRegistryIO = errors.New("registry io error")
	// ErrExternalJob marks a provider-reported terminal failure of an async job.
	ErrExternalJob = errors.New("external job failure")
	// ErrConfiguration marks missing or contradictory configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// RunFatal reports whether the error must abort the whole run rather than
// fail a single item.
func RunFatal(err error) bool {
	return errors.Is(err, ErrRegistryIO) || errors.Is(err, ErrConfiguration)
}

// Retryable reports whether the error is worth another attempt. Validation,
// not-found, and conflict errors are deterministic and never retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrConfiguration):
		return false
	}
	return true
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
