package ggml

import "fmt"

// notConfiguredError signals a missing executable path at construction.
type notConfiguredError struct{}

func (notConfiguredError) Error() string {
	return "ggml executable not configured (set GGML_MAIN_PATH or the executable option)"
}

// ErrNotConfigured constructs a notConfiguredError.
func ErrNotConfigured() error { return notConfiguredError{} }

// IsNotConfigured reports whether err indicates a missing executable setting.
func IsNotConfigured(err error) bool {
	_, ok := err.(notConfiguredError)
	return ok
}

// notFoundError signals that a configured path is not an existing regular file.
type notFoundError struct{ path string }

func (e notFoundError) Error() string { return "path is not a file: " + e.path }

// ErrNotFound constructs a notFoundError for the given path.
func ErrNotFound(path string) error { return notFoundError{path: path} }

// IsNotFound reports whether the error indicates a missing executable or model file.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// badFormatError signals a model file whose header is not the GGUF magic.
type badFormatError struct{ path string }

func (e badFormatError) Error() string { return e.path + " is not in GGUF format" }

// ErrBadFormat constructs a badFormatError for the given path.
func ErrBadFormat(path string) error { return badFormatError{path: path} }

// IsBadFormat reports whether the error indicates a model signature mismatch.
func IsBadFormat(err error) bool {
	_, ok := err.(badFormatError)
	return ok
}

// runError signals a non-zero exit from the external runner on the first call,
// when the generator is presumed mis-configured.
type runError struct {
	exitCode int
	stderr   string
}

func (e runError) Error() string {
	if e.stderr == "" {
		return fmt.Sprintf("ggml run failed with exit code %d", e.exitCode)
	}
	return fmt.Sprintf("ggml run failed with exit code %d: %s", e.exitCode, e.stderr)
}

// Stderr returns the captured diagnostic text from the failed run.
func (e runError) Stderr() string { return e.stderr }

// IsRunFailed reports whether err is a propagated first-call run failure.
func IsRunFailed(err error) bool {
	_, ok := err.(runError)
	return ok
}
