package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sunforger/garak/internal/config"
	"github.com/Sunforger/garak/internal/generators"
	"github.com/Sunforger/garak/internal/generators/ggml"
	"github.com/Sunforger/garak/internal/generators/llamacpp"
	"github.com/Sunforger/garak/internal/harness"
	"github.com/Sunforger/garak/internal/httpapi"
	"github.com/Sunforger/garak/internal/registry"
)

// app carries configuration resolved from flags, config file, and env
// across the command tree.
type app struct {
	cfgPath string
	cfg     config.Config
	log     zerolog.Logger

	backend      string
	defaultModel string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "garak",
		Short:         "Drive local ggml/gguf model runners for text generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "Config file (.yaml/.json/.toml)")
	pf.String("executable", "", "Path to the ggml runner binary (defaults to $GGML_MAIN_PATH)")
	pf.String("model", "", "Path to a gguf model file")
	pf.String("models-dir", "~/models/llm", "Directory to scan for *.gguf model files")
	pf.Int("seed", 0, "Generation seed (unset resolves to 0)")
	pf.IntP("verbose", "v", 0, "Verbosity: 1 info, 2 debug with command dumps")
	pf.Int("generations", 0, "Completions per prompt (0 uses the default)")
	pf.StringVar(&a.backend, "backend", "ggml", "Generation backend: ggml (subprocess) or llamacpp (in-process, -tags=llama)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if a.cfgPath != "" {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
		}
		// Flags win over the config file when explicitly set.
		flags := cmd.Flags()
		if v, _ := flags.GetString("executable"); flags.Changed("executable") {
			a.cfg.Executable = v
		}
		if v, _ := flags.GetString("model"); flags.Changed("model") {
			a.cfg.Model = v
		}
		if v, _ := flags.GetString("models-dir"); flags.Changed("models-dir") || a.cfg.ModelsDir == "" {
			a.cfg.ModelsDir = v
		}
		if flags.Changed("seed") {
			v, _ := flags.GetInt("seed")
			a.cfg.Seed = &v
		}
		if v, _ := flags.GetInt("verbose"); flags.Changed("verbose") {
			a.cfg.Verbose = v
		}
		if v, _ := flags.GetInt("generations"); flags.Changed("generations") {
			a.cfg.Generations = v
		}
		a.log = newLogger(a.cfg.Verbose)
		return nil
	}

	root.AddCommand(newRunCmd(a), newModelsCmd(a), newServeCmd(a))
	return root
}

// newGenerator constructs the configured backend from resolved settings.
// "ggml" drives an external runner binary; "llamacpp" loads the model
// in-process and requires a build with -tags=llama.
func (a *app) newGenerator() (generators.Generator, error) {
	if a.cfg.Model == "" {
		return nil, fmt.Errorf("no model configured (use --model or the config file)")
	}
	switch a.backend {
	case "", "ggml":
		return ggml.New(a.cfg.Model, a.cfg.Generations, ggml.Config{
			Executable:     a.cfg.Executable,
			Seed:           a.cfg.Seed,
			Verbose:        a.cfg.Verbose,
			RaiseOnFailure: a.cfg.RaiseOnFailure,
			Params:         harness.ParamsFromConfig(a.cfg),
			Logger:         a.log,
		})
	case "llamacpp":
		lc := llamacpp.Config{Seed: a.cfg.Seed}
		if a.cfg.MaxTokens != nil {
			lc.MaxTokens = *a.cfg.MaxTokens
		}
		if a.cfg.TopK != nil {
			lc.TopK = *a.cfg.TopK
		}
		if a.cfg.TopP != nil {
			lc.TopP = *a.cfg.TopP
		}
		if a.cfg.Temperature != nil {
			lc.Temperature = *a.cfg.Temperature
		}
		if a.cfg.RepeatPenalty != nil {
			lc.RepeatPenalty = *a.cfg.RepeatPenalty
		}
		return llamacpp.New(a.cfg.Model, a.cfg.Generations, lc)
	default:
		return nil, fmt.Errorf("unknown backend %q (want ggml or llamacpp)", a.backend)
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "run <prompt>",
		Short:   "Generate completions for one prompt and print them",
		Example: "  garak run --model ~/models/tiny.gguf \"Write a haiku\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := a.newGenerator()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			outs, err := generators.Batch(ctx, gen, args[0])
			for i, out := range outs {
				if out == nil {
					a.log.Warn().Int("generation", i).Msg("generation dropped")
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), *out)
			}
			return err
		},
	}
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List gguf models found in the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := registry.LoadDir(a.cfg.ModelsDir)
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.ID, m.Path)
			}
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	var corsOrigins string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generation over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := a.cfg.Addr
			if addr == "" {
				addr = ":8080"
			}
			if v := os.Getenv("GARAK_ADDR"); v != "" && a.cfg.Addr == "" {
				addr = v
			}

			models, err := registry.LoadDir(a.cfg.ModelsDir)
			if err != nil {
				return fmt.Errorf("load models: %w", err)
			}
			defaultModel := a.defaultModel
			if defaultModel == "" && len(models) > 0 {
				defaultModel = models[0].ID
			}

			h := harness.New(harness.Config{
				Run:          a.cfg,
				Registry:     models,
				DefaultModel: defaultModel,
				Logger:       a.log,
			})

			httpapi.SetLogger(a.log)
			if origins := splitCSV(corsOrigins); len(origins) > 0 {
				a.cfg.CORS.Enabled = true
				a.cfg.CORS.AllowedOrigins = origins
			}
			httpapi.SetCORSOptions(a.cfg.CORS.Enabled,
				a.cfg.CORS.AllowedOrigins, a.cfg.CORS.AllowedMethods, a.cfg.CORS.AllowedHeaders)

			baseCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			httpapi.SetBaseContext(baseCtx)

			srv := &http.Server{Addr: addr, Handler: httpapi.NewMux(h)}
			go func() {
				a.log.Info().Str("addr", addr).Str("models_dir", a.cfg.ModelsDir).
					Int("models", len(models)).Msg("garak listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					a.log.Fatal().Err(err).Msg("server error")
				}
			}()

			// Graceful shutdown (Ctrl+C / SIGTERM)
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			cancel()
			ctx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(ctx); err != nil {
				a.log.Error().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&a.defaultModel, "default-model", "", "Default model id when a request omits model")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated origins allowed for CORS (enables CORS)")
	return cmd
}
