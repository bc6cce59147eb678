package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// Local overrides for GGML_MAIN_PATH and friends; absence is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "garak:", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. Verbosity maps onto zerolog levels:
// 0 warn, 1 info, 2+ debug.
func newLogger(verbose int) zerolog.Logger {
	lvl := zerolog.WarnLevel
	switch {
	case verbose >= 2:
		lvl = zerolog.DebugLevel
	case verbose == 1:
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// splitCSV splits a comma-separated flag value, dropping blank items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
