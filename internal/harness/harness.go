// Package harness coordinates generators for the HTTP service: it resolves
// model ids against the registry, builds and caches one subprocess generator
// per model, and tracks run totals for /status.
package harness

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sunforger/garak/internal/config"
	"github.com/Sunforger/garak/internal/generators"
	"github.com/Sunforger/garak/internal/generators/ggml"
	"github.com/Sunforger/garak/internal/registry"
	"github.com/Sunforger/garak/pkg/types"
)

// Config encapsulates all tunables for Harness construction.
type Config struct {
	Run          config.Config
	Registry     []types.Model
	DefaultModel string
	Logger       zerolog.Logger
}

// GeneratorFactory builds a generator for a registry entry. Swappable so
// tests can install scripted generators.
type GeneratorFactory func(model types.Model) (generators.Generator, error)

// Harness implements the httpapi Service interface.
type Harness struct {
	run          config.Config
	registry     []types.Model
	defaultModel string
	log          zerolog.Logger
	startTime    time.Time

	mu      sync.Mutex
	gens    map[string]generators.Generator
	newGen  GeneratorFactory
	lastErr string

	generationsTotal atomic.Uint64
	droppedTotal     atomic.Uint64
}

// New constructs a Harness. The default generator factory builds ggml
// subprocess generators from the run configuration.
func New(cfg Config) *Harness {
	h := &Harness{
		run:          cfg.Run,
		registry:     cfg.Registry,
		defaultModel: cfg.DefaultModel,
		log:          cfg.Logger,
		startTime:    time.Now(),
		gens:         make(map[string]generators.Generator),
	}
	h.newGen = func(model types.Model) (generators.Generator, error) {
		return ggml.New(model.Path, cfg.Run.Generations, ggml.Config{
			Executable:     cfg.Run.Executable,
			Seed:           cfg.Run.Seed,
			Verbose:        cfg.Run.Verbose,
			RaiseOnFailure: cfg.Run.RaiseOnFailure,
			Params:         ParamsFromConfig(cfg.Run),
			Logger:         cfg.Logger,
		})
	}
	return h
}

// SetGeneratorFactory replaces the generator constructor. Intended for tests.
func (h *Harness) SetGeneratorFactory(f GeneratorFactory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f != nil {
		h.newGen = f
	}
}

// ParamsFromConfig maps run-level sampling overrides onto the generator's
// default parameter set. Unset overrides keep the defaults.
func ParamsFromConfig(c config.Config) *ggml.Params {
	p := ggml.DefaultParams()
	if c.MaxTokens != nil {
		p.MaxTokens = c.MaxTokens
	}
	if c.RepeatPenalty != nil {
		p.RepeatPenalty = c.RepeatPenalty
	}
	if c.PresencePenalty != nil {
		p.PresencePenalty = c.PresencePenalty
	}
	if c.FrequencyPenalty != nil {
		p.FrequencyPenalty = c.FrequencyPenalty
	}
	if c.TopK != nil {
		p.TopK = c.TopK
	}
	if c.TopP != nil {
		p.TopP = c.TopP
	}
	if c.Temperature != nil {
		p.Temperature = c.Temperature
	}
	return p
}

func (h *Harness) ListModels() []types.Model {
	out := make([]types.Model, len(h.registry))
	copy(out, h.registry)
	return out
}

func (h *Harness) Ready() bool {
	return len(h.registry) > 0
}

func (h *Harness) Status() types.StatusResponse {
	h.mu.Lock()
	lastErr := h.lastErr
	h.mu.Unlock()
	state := "ready"
	if !h.Ready() {
		state = "error"
	}
	now := time.Now()
	return types.StatusResponse{
		State:            state,
		Models:           len(h.registry),
		GenerationsTotal: h.generationsTotal.Load(),
		DroppedTotal:     h.droppedTotal.Load(),
		LastError:        lastErr,
		UptimeSeconds:    int64(now.Sub(h.startTime).Seconds()),
		ServerTimeUnix:   now.Unix(),
	}
}

// Generate resolves the requested model and produces the requested number of
// completions. Dropped generations appear as nil entries in the response.
func (h *Harness) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	id := req.Model
	if id == "" {
		id = h.defaultModel
	}
	model, ok := registry.Find(h.registry, id)
	if !ok {
		return types.GenerateResponse{}, ErrModelNotFound(id)
	}

	gen, err := h.generatorFor(model)
	if err != nil {
		h.recordErr(err)
		return types.GenerateResponse{}, err
	}

	n := req.Generations
	if n <= 0 {
		n = gen.Generations()
	}
	outputs := make([]*string, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return types.GenerateResponse{}, err
		}
		out, err := gen.Generate(ctx, req.Prompt)
		if err != nil {
			h.recordErr(err)
			return types.GenerateResponse{}, err
		}
		if out == nil {
			h.droppedTotal.Add(1)
		} else {
			h.generationsTotal.Add(1)
		}
		outputs = append(outputs, out)
	}
	return types.GenerateResponse{Model: model.ID, Outputs: outputs}, nil
}

// generatorFor returns the cached generator for a model, constructing it on
// first use. Caching keeps per-adapter state (the one-shot first-call flag)
// alive across requests.
func (h *Harness) generatorFor(model types.Model) (generators.Generator, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if g, ok := h.gens[model.ID]; ok {
		return g, nil
	}
	g, err := h.newGen(model)
	if err != nil {
		return nil, err
	}
	h.gens[model.ID] = g
	return g, nil
}

func (h *Harness) recordErr(err error) {
	h.mu.Lock()
	h.lastErr = err.Error()
	h.mu.Unlock()
	h.log.Error().Err(err).Msg("generation failed")
}
