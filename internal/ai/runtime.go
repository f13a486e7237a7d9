package ai

import "context"

// Runtime is a chat backend: OpenRouter, Gemini or a local Ollama.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
)

// DefaultModels is the model used per provider when none is configured.
var DefaultModels = map[string]string{
	ProviderOpenRouter: "google/gemini-2.5-flash",
	ProviderGemini:     "gemini-2.5-flash",
	ProviderOllama:     "llama3.1:8b",
}
