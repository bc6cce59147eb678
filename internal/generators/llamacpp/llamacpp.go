//go:build llama

package llamacpp

import (
	"context"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// Generator runs gguf models in-process through go-llama.cpp. Predict is not
// reentrant, so a mutex serializes generations.
type Generator struct {
	mu          sync.Mutex
	model       *llama.LLama
	cfg         Config
	generations int
}

// New loads the model into memory. Unlike the subprocess generator there is
// no separate runner binary to validate; go-llama.cpp performs its own
// format checks on load.
func New(modelPath string, generations int, cfg Config) (*Generator, error) {
	mo := []llama.ModelOption{}
	if cfg.CtxSize > 0 {
		mo = append(mo, llama.SetContext(cfg.CtxSize))
	}
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, err
	}
	if generations <= 0 {
		generations = 1
	}
	return &Generator{model: m, cfg: cfg, generations: generations}, nil
}

func (g *Generator) Name() string     { return "llamacpp" }
func (g *Generator) Generations() int { return g.generations }

func (g *Generator) Generate(ctx context.Context, prompt string) (*string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	text, err := g.model.Predict(prompt, g.predictOptions()...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return &text, nil
}

// Close frees the loaded model.
func (g *Generator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.model != nil {
		g.model.Free()
		g.model = nil
	}
	return nil
}

func (g *Generator) predictOptions() []llama.PredictOption {
	po := []llama.PredictOption{}
	if g.cfg.MaxTokens > 0 {
		po = append(po, llama.SetTokens(g.cfg.MaxTokens))
	}
	if g.cfg.Threads > 0 {
		po = append(po, llama.SetThreads(g.cfg.Threads))
	}
	if g.cfg.TopK > 0 {
		po = append(po, llama.SetTopK(g.cfg.TopK))
	}
	if g.cfg.TopP > 0 {
		po = append(po, llama.SetTopP(float32(g.cfg.TopP)))
	}
	if g.cfg.Temperature > 0 {
		po = append(po, llama.SetTemperature(float32(g.cfg.Temperature)))
	}
	if g.cfg.RepeatPenalty > 0 {
		po = append(po, llama.SetPenalty(float32(g.cfg.RepeatPenalty)))
	}
	seed := 0
	if g.cfg.Seed != nil {
		seed = *g.cfg.Seed
	}
	po = append(po, llama.SetSeed(seed))
	return po
}
