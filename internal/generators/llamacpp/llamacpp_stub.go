//go:build !llama

package llamacpp

import "context"

// Generator is a stub that refuses to run without the 'llama' build tag.
// It keeps default builds CGO-free without mocking any behavior.
type Generator struct{}

func New(modelPath string, generations int, cfg Config) (*Generator, error) {
	return nil, ErrUnavailable()
}

func (g *Generator) Name() string     { return "llamacpp" }
func (g *Generator) Generations() int { return 0 }

func (g *Generator) Generate(ctx context.Context, prompt string) (*string, error) {
	// Unreachable in practice because New fails, but return a clear error anyway.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable()
}

func (g *Generator) Close() error { return nil }
