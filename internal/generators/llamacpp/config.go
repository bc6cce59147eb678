// Package llamacpp provides an optional in-process generator over the
// go-llama.cpp bindings. It is compiled for real only with `-tags llama`;
// default builds get a no-CGO stub that fails fast, keeping CI CGO-free.
package llamacpp

// Config holds construction-time tunables for the in-process generator.
type Config struct {
	CtxSize       int
	Threads       int
	MaxTokens     int
	TopK          int
	TopP          float64
	Temperature   float64
	RepeatPenalty float64
	// Seed is the run-level seed; nil resolves to 0 for determinism.
	Seed *int
}

// unavailableError signals that llama support was not compiled in.
type unavailableError struct{}

func (unavailableError) Error() string {
	return "llama support not built (missing 'llama' build tag)"
}

// ErrUnavailable constructs an unavailableError.
func ErrUnavailable() error { return unavailableError{} }

// IsUnavailable reports whether err indicates a build without llama support.
func IsUnavailable(err error) bool {
	_, ok := err.(unavailableError)
	return ok
}
