// Package errors defines the error values shared across docsite and the
// suggestion-carrying errors shown by the CLI.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrFallbackUnavailable is returned when the 404 fallback document
	// cannot be read. Requests that hit it are answered with a 500.
	ErrFallbackUnavailable = errors.New("fallback document unavailable")

	// ErrContentRootMissing is returned when the content root does not
	// exist or is not a directory.
	ErrContentRootMissing = errors.New("content root missing")

	// ErrAlreadyListening is returned when a server is asked to bind twice.
	ErrAlreadyListening = errors.New("server is already listening")
)

// FallbackError records which fallback document failed and why.
type FallbackError struct {
	Path string
	Err  error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrFallbackUnavailable, e.Path, e.Err)
}

// Unwrap exposes both the sentinel and the underlying I/O error to errors.Is.
func (e *FallbackError) Unwrap() []error {
	return []error{ErrFallbackUnavailable, e.Err}
}
