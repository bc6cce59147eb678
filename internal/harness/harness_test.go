package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sunforger/garak/internal/config"
	"github.com/Sunforger/garak/internal/generators"
	"github.com/Sunforger/garak/pkg/types"
)

type scriptedGenerator struct {
	results []*string
	errs    []error
	calls   int
}

func (s *scriptedGenerator) Name() string     { return "scripted" }
func (s *scriptedGenerator) Generations() int { return len(s.results) }

func (s *scriptedGenerator) Generate(ctx context.Context, prompt string) (*string, error) {
	i := s.calls
	s.calls++
	return s.results[i], s.errs[i]
}

func strp(s string) *string { return &s }

func newTestHarness(t *testing.T, gen generators.Generator, factoryErr error) *Harness {
	t.Helper()
	h := New(Config{
		Registry:     []types.Model{{ID: "m.gguf", Name: "m.gguf", Path: "/models/m.gguf"}},
		DefaultModel: "m.gguf",
		Logger:       zerolog.Nop(),
	})
	h.SetGeneratorFactory(func(model types.Model) (generators.Generator, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return gen, nil
	})
	return h
}

func TestGenerate_CollectsOutputsAndCountsDrops(t *testing.T) {
	gen := &scriptedGenerator{
		results: []*string{strp("a"), nil, strp("c")},
		errs:    []error{nil, nil, nil},
	}
	h := newTestHarness(t, gen, nil)

	resp, err := h.Generate(context.Background(), types.GenerateRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Model != "m.gguf" || len(resp.Outputs) != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	st := h.Status()
	if st.GenerationsTotal != 2 || st.DroppedTotal != 1 {
		t.Fatalf("unexpected totals: %+v", st)
	}
}

func TestGenerate_UnknownModel(t *testing.T) {
	h := newTestHarness(t, &scriptedGenerator{}, nil)
	_, err := h.Generate(context.Background(), types.GenerateRequest{Model: "nope.gguf", Prompt: "p"})
	if !IsModelNotFound(err) {
		t.Fatalf("expected model-not-found, got %v", err)
	}
}

func TestGenerate_FactoryErrorRecordedAsLastError(t *testing.T) {
	boom := errors.New("executable not configured")
	h := newTestHarness(t, nil, boom)
	_, err := h.Generate(context.Background(), types.GenerateRequest{Prompt: "p"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
	if st := h.Status(); st.LastError == "" {
		t.Fatal("factory error should be recorded in status")
	}
}

func TestGenerate_RequestOverridesGenerations(t *testing.T) {
	gen := &scriptedGenerator{
		results: []*string{strp("a"), strp("b"), strp("c")},
		errs:    []error{nil, nil, nil},
	}
	h := newTestHarness(t, gen, nil)
	resp, err := h.Generate(context.Background(), types.GenerateRequest{Prompt: "p", Generations: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(resp.Outputs) != 2 || gen.calls != 2 {
		t.Fatalf("expected 2 generations, got %d outputs %d calls", len(resp.Outputs), gen.calls)
	}
}

func TestGenerate_GeneratorCachedAcrossRequests(t *testing.T) {
	factoryCalls := 0
	gen := &scriptedGenerator{
		results: []*string{strp("a"), strp("b")},
		errs:    []error{nil, nil},
	}
	h := New(Config{
		Registry:     []types.Model{{ID: "m.gguf", Path: "/models/m.gguf"}},
		DefaultModel: "m.gguf",
		Logger:       zerolog.Nop(),
	})
	h.SetGeneratorFactory(func(model types.Model) (generators.Generator, error) {
		factoryCalls++
		return gen, nil
	})
	for i := 0; i < 2; i++ {
		if _, err := h.Generate(context.Background(), types.GenerateRequest{Prompt: "p", Generations: 1}); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	if factoryCalls != 1 {
		t.Fatalf("generator should be constructed once, got %d", factoryCalls)
	}
}

func TestStatusAndReady(t *testing.T) {
	h := New(Config{Logger: zerolog.Nop()})
	if h.Ready() {
		t.Fatal("empty registry should not be ready")
	}
	if st := h.Status(); st.State != "error" || st.Models != 0 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestParamsFromConfig_Overrides(t *testing.T) {
	topK := 12
	temp := 0.1
	p := ParamsFromConfig(config.Config{TopK: &topK, Temperature: &temp})
	if p.TopK == nil || *p.TopK != 12 {
		t.Fatalf("top_k override not applied: %v", p.TopK)
	}
	if p.Temperature == nil || *p.Temperature != 0.1 {
		t.Fatalf("temperature override not applied: %v", p.Temperature)
	}
	if p.RepeatPenalty == nil || *p.RepeatPenalty != 1.1 {
		t.Fatalf("defaults should survive: %v", p.RepeatPenalty)
	}
}
