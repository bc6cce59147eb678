package ggml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/Sunforger/garak/internal/common/fsutil"
)

// EnvExecutable is the environment variable consulted for the runner binary
// when Config.Executable is empty, e.g. "/home/leon/llama.cpp/main".
const EnvExecutable = "GGML_MAIN_PATH"

// ggufMagic is the fixed 4-byte signature at the start of every gguf file.
var ggufMagic = []byte{0x47, 0x47, 0x55, 0x46}

// Defaults applied when corresponding Params fields are left nil.
const (
	DefaultMaxTokens        = 150
	DefaultRepeatPenalty    = 1.1
	DefaultPresencePenalty  = 0.0
	DefaultFrequencyPenalty = 0.0
	DefaultTopK             = 40
	DefaultTopP             = 0.95
	DefaultTemperature      = 0.8
	DefaultGenerations      = 10
)

// Params holds the command-line parameters forwarded to the runner, in the
// order they appear on the command line. A nil field omits both the flag and
// its value, which lets a caller suppress a single control entirely.
type Params struct {
	ModelPath        *string  // -m
	MaxTokens        *int     // -n
	RepeatPenalty    *float64 // --repeat-penalty
	PresencePenalty  *float64 // --presence-penalty
	FrequencyPenalty *float64 // --frequency-penalty
	TopK             *int     // --top-k
	TopP             *float64 // --top-p
	Temperature      *float64 // --temp
	Seed             *int     // -s
}

// DefaultParams returns the stock sampling configuration. ModelPath and Seed
// are left nil; New fills them from its arguments and the run seed.
func DefaultParams() *Params {
	return &Params{
		MaxTokens:        intp(DefaultMaxTokens),
		RepeatPenalty:    floatp(DefaultRepeatPenalty),
		PresencePenalty:  floatp(DefaultPresencePenalty),
		FrequencyPenalty: floatp(DefaultFrequencyPenalty),
		TopK:             intp(DefaultTopK),
		TopP:             floatp(DefaultTopP),
		Temperature:      floatp(DefaultTemperature),
	}
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

// Config encapsulates construction-time tunables for the generator.
type Config struct {
	// Executable is the path to the ggml runner binary. Falls back to the
	// GGML_MAIN_PATH environment variable when empty.
	Executable string
	// Seed is the run-level seed. A nil seed resolves to 0: the runner
	// treats a negative seed as "random", which would break determinism.
	Seed *int
	// Verbose enables a debug dump of the full command line when > 1.
	Verbose int
	// RaiseOnFailure controls the first-call escalation policy (nil → true).
	// When false, a non-zero exit is ignored and stdout is used as-is.
	RaiseOnFailure *bool
	// Params overrides the command-line parameter set (nil → DefaultParams).
	Params *Params
	// Logger receives transient failure reports and verbose command dumps.
	Logger zerolog.Logger
}

// Generator drives a local ggml/gguf runner binary, one synchronous
// subprocess invocation per prompt. Construction validates the executable
// and the model header up front; an invalid configuration never reaches the
// invocation path.
type Generator struct {
	executable     string
	params         *Params
	generations    int
	verbose        int
	raiseOnFailure bool
	log            zerolog.Logger

	mu        sync.Mutex
	firstCall bool
}

// New validates the executable and model paths and returns a ready
// generator. The model file must start with the gguf magic; only the first
// 4 bytes are read.
func New(modelPath string, generations int, cfg Config) (*Generator, error) {
	exe := cfg.Executable
	if exe == "" {
		exe = os.Getenv(EnvExecutable)
	}
	if exe == "" {
		return nil, ErrNotConfigured()
	}
	if !fsutil.IsRegularFile(exe) {
		return nil, ErrNotFound(exe)
	}
	if !fsutil.IsRegularFile(modelPath) {
		return nil, ErrNotFound(modelPath)
	}
	if err := checkMagic(modelPath); err != nil {
		return nil, err
	}

	params := cfg.Params
	if params == nil {
		params = DefaultParams()
	}
	if params.ModelPath == nil {
		p := modelPath
		params.ModelPath = &p
	}
	if params.Seed == nil {
		seed := 0
		if cfg.Seed != nil {
			seed = *cfg.Seed
		}
		params.Seed = &seed
	}
	if generations <= 0 {
		generations = DefaultGenerations
	}
	raise := true
	if cfg.RaiseOnFailure != nil {
		raise = *cfg.RaiseOnFailure
	}
	return &Generator{
		executable:     exe,
		params:         params,
		generations:    generations,
		verbose:        cfg.Verbose,
		raiseOnFailure: raise,
		log:            cfg.Logger,
		firstCall:      true,
	}, nil
}

// Name identifies the generator family.
func (g *Generator) Name() string { return "ggml" }

// ModelPath returns the validated model file path.
func (g *Generator) ModelPath() string {
	if g.params.ModelPath == nil {
		return ""
	}
	return *g.params.ModelPath
}

// Generations returns the configured completions-per-prompt count.
func (g *Generator) Generations() int { return g.generations }

// commandArgs builds the argv for one invocation. Deterministic: identical
// params and prompt always yield an identical vector. The prompt is passed
// as a single discrete argument so embedded whitespace survives verbatim.
func (g *Generator) commandArgs(prompt string) []string {
	args := []string{g.executable, "-p", prompt}
	appendStr := func(flag string, v *string) {
		if v != nil {
			args = append(args, flag, *v)
		}
	}
	appendInt := func(flag string, v *int) {
		if v != nil {
			args = append(args, flag, strconv.Itoa(*v))
		}
	}
	appendFloat := func(flag string, v *float64) {
		if v != nil {
			args = append(args, flag, strconv.FormatFloat(*v, 'g', -1, 64))
		}
	}
	appendStr("-m", g.params.ModelPath)
	appendInt("-n", g.params.MaxTokens)
	appendFloat("--repeat-penalty", g.params.RepeatPenalty)
	appendFloat("--presence-penalty", g.params.PresencePenalty)
	appendFloat("--frequency-penalty", g.params.FrequencyPenalty)
	appendInt("--top-k", g.params.TopK)
	appendFloat("--top-p", g.params.TopP)
	appendFloat("--temp", g.params.Temperature)
	appendInt("-s", g.params.Seed)
	return args
}

// Generate runs the external process for one prompt and returns the
// generated text with the echoed prompt stripped. A nil result with a nil
// error means the generation was dropped after a recovered failure.
//
// Failure policy: a non-zero exit on the very first call indicates a
// mis-configured generator (bad path, bad model, bad flag) and is returned
// as an error carrying the runner's stderr. Later non-zero exits are logged
// and yield a nil result so one bad prompt does not abort a whole batch.
func (g *Generator) Generate(ctx context.Context, prompt string) (*string, error) {
	args := g.commandArgs(prompt)
	if g.verbose > 1 {
		g.log.Debug().Strs("command", args).Msg("ggml invoked")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		// fall through to output handling
	case errors.As(err, &exitErr):
		if g.raiseOnFailure {
			diag := strings.TrimSpace(stderr.String())
			first := g.completeCall()
			g.log.Error().
				Int("exit_code", exitErr.ExitCode()).
				Str("stderr", diag).
				Msg("ggml run failed")
			if first {
				return nil, runError{exitCode: exitErr.ExitCode(), stderr: diag}
			}
			return nil, nil
		}
		// Escalation disabled: the exit code is ignored and whatever the
		// runner wrote to stdout is used as the generation.
	default:
		// The process never got far enough to report an exit code (e.g. it
		// could not be started). Recover without touching the first-call flag.
		g.log.Error().Err(err).Msg("ggml invocation error")
		return nil, nil
	}

	out := strings.TrimLeftFunc(stdout.String(), unicode.IsSpace)
	out = strings.TrimPrefix(out, strings.TrimLeftFunc(prompt, unicode.IsSpace))
	g.completeCall()
	return &out, nil
}

// completeCall flips the one-shot first-call flag and reports its prior
// value. The flag transitions exactly once and never resets.
func (g *Generator) completeCall() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	first := g.firstCall
	g.firstCall = false
	return first
}

// checkMagic reads exactly the first 4 bytes of the model file and compares
// them against the gguf signature. A file shorter than the signature fails
// the format check rather than erroring out.
func checkMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	magic := make([]byte, len(ggufMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrBadFormat(path)
		}
		return fmt.Errorf("read model header: %w", err)
	}
	if !bytes.Equal(magic, ggufMagic) {
		return ErrBadFormat(path)
	}
	return nil
}
