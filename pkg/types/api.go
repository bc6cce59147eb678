package types

// Model represents a discoverable gguf model on disk.
type Model struct {
	// Stable identifier for the model (the gguf filename).
	// example: tinyllama-q4.gguf
	ID string `json:"id" example:"tinyllama-q4.gguf"`
	// Human-friendly name.
	// example: tinyllama-q4.gguf
	Name string `json:"name" example:"tinyllama-q4.gguf"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/tinyllama-q4.gguf
	Path string `json:"path" example:"/home/user/models/tinyllama-q4.gguf"`
}

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: tinyllama-q4.gguf
	Model string `json:"model,omitempty" example:"tinyllama-q4.gguf"`
	// Required prompt text to generate completions for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Completions to produce for this prompt. 0 uses the run default.
	// example: 3
	Generations int `json:"generations,omitempty" example:"3"`
}

// GenerateResponse is returned by POST /generate. A null entry in Outputs is
// a generation that was dropped after a recovered runner failure.
type GenerateResponse struct {
	// Model that served the request.
	// example: tinyllama-q4.gguf
	Model string `json:"model" example:"tinyllama-q4.gguf"`
	// One entry per requested generation, null for dropped ones.
	Outputs []*string `json:"outputs"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall harness state (ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Number of models in the registry.
	// example: 4
	Models int `json:"models" example:"4"`
	// Total completions produced since start.
	// example: 120
	GenerationsTotal uint64 `json:"generations_total" example:"120"`
	// Total generations dropped after recovered runner failures.
	// example: 2
	DroppedTotal uint64 `json:"dropped_total" example:"2"`
	// Last error observed (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
