package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRemoteLookup marks failures of a remote fetch or search after the
	// transport exhausted its own retries.
	ErrRemoteLookup = errors.New("remote lookup failure")
	// ErrRemoteApply marks a watch-state write that a platform rejected or
	// that failed in transit.
	ErrRemoteApply = errors.New("remote apply failure")
	// ErrCacheWrite marks a relation cache append that did not persist.
	ErrCacheWrite = errors.New("cache write failure")
	// ErrMalformedCache marks an unparseable relation cache file. Fatal at
	// load: the engine must not guess at recovery.
	ErrMalformedCache = errors.New("malformed cache data")
	ErrConfiguration  = errors.New("configuration error")
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrTransient      = errors.New("transient failure")
)

// Wrap builds an error message carrying component context while tagging the
// chain with the provided marker for errors.Is classification. The marker
// should be one of the exported sentinels above.
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

// Classify names the failure family for run reporting and history rows.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformedCache):
		return "malformed-cache"
	case errors.Is(err, ErrCacheWrite):
		return "cache-write"
	case errors.Is(err, ErrRemoteLookup):
		return "remote-lookup"
	case errors.Is(err, ErrRemoteApply):
		return "remote-apply"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
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
