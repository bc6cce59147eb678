// Package generators defines the contract the harness uses to drive text
// generators and a batch helper shared by the CLI and the HTTP service.
// Concrete backends live in subpackages (ggml, llamacpp).
package generators

import "context"

// Generator produces completions for prompts. Implementations must be safe
// for concurrent Generate calls.
type Generator interface {
	// Name identifies the generator family (e.g. "ggml").
	Name() string
	// Generate produces one completion for the prompt. A nil result with a
	// nil error means the generation was dropped after a recovered failure;
	// callers should count it as missing, not abort.
	Generate(ctx context.Context, prompt string) (*string, error)
	// Generations is the configured completions-per-prompt count.
	Generations() int
}

// Batch collects Generations() completions for one prompt. It stops early
// when the context is canceled or the generator reports a hard error, and
// returns whatever was collected up to that point.
func Batch(ctx context.Context, g Generator, prompt string) ([]*string, error) {
	n := g.Generations()
	outs := make([]*string, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return outs, err
		}
		out, err := g.Generate(ctx, prompt)
		if err != nil {
			return outs, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}
