// Package e2e wires registry, harness, and the HTTP API together against a
// scripted runner binary, exercising the full serve-mode path without a real
// llama.cpp build.
package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sunforger/garak/internal/config"
	"github.com/Sunforger/garak/internal/harness"
	"github.com/Sunforger/garak/internal/httpapi"
	"github.com/Sunforger/garak/internal/registry"
	"github.com/Sunforger/garak/pkg/types"
)

// createModelsDir populates a temp dir with gguf-headed model files.
func createModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("GGUF\x03\x00\x00\x00"), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir
}

// writeRunner creates a shell script standing in for the ggml binary.
func writeRunner(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ggml-main")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write runner: %v", err)
	}
	return p
}

func newServer(t *testing.T, runnerBody string, models ...string) *httptest.Server {
	t.Helper()
	dir := createModelsDir(t, models...)
	reg, err := registry.LoadDir(dir)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	h := harness.New(harness.Config{
		Run: config.Config{
			Executable:  writeRunner(t, runnerBody),
			Generations: 1,
		},
		Registry:     reg,
		DefaultModel: reg[0].ID,
		Logger:       zerolog.Nop(),
	})
	ts := httptest.NewServer(httpapi.NewMux(h))
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, respBody
}

func TestE2E_GenerateStripsEcho(t *testing.T) {
	// The runner echoes the prompt followed by a completion, like llama.cpp.
	ts := newServer(t, `echo "Hello world"`, "alpha.gguf")

	resp, body := postJSON(t, ts.URL+"/generate", `{"prompt":"Hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var out types.GenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Model != "alpha.gguf" || len(out.Outputs) != 1 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if out.Outputs[0] == nil || *out.Outputs[0] != " world\n" {
		t.Fatalf("echo not stripped: %v", out.Outputs[0])
	}
}

func TestE2E_UnknownModel404(t *testing.T) {
	ts := newServer(t, `echo hi`, "alpha.gguf")
	resp, _ := postJSON(t, ts.URL+"/generate", `{"prompt":"x","model":"missing.gguf"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestE2E_FirstCallFailure502(t *testing.T) {
	ts := newServer(t, `echo "cannot load model" >&2; exit 1`, "alpha.gguf")
	resp, body := postJSON(t, ts.URL+"/generate", `{"prompt":"x"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "cannot load model") {
		t.Fatalf("stderr should surface in the error: %s", body)
	}
}

func TestE2E_ModelsAndStatus(t *testing.T) {
	ts := newServer(t, `echo hi`, "alpha.gguf", "beta.gguf")

	resp, err := http.Get(ts.URL + "/models")
	if err != nil {
		t.Fatalf("get models: %v", err)
	}
	var models types.ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	resp.Body.Close()
	if len(models.Models) != 2 {
		t.Fatalf("expected 2 models, got %+v", models.Models)
	}

	resp, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	var st types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	resp.Body.Close()
	if st.State != "ready" || st.Models != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}
}
