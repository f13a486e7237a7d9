package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/dashloom-cli/internal/config"
	"github.com/KaramelBytes/dashloom-cli/internal/project"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// resolveProvider picks the provider from the flag, then the project, then
// config, normalizing aliases.
func resolveProvider(p *project.Project, cfg *cfgpkg.Global, flag string) string {
	name := strings.ToLower(strings.TrimSpace(flag))
	if name == "" && p != nil && p.Config != nil {
		name = strings.ToLower(p.Config.Provider)
	}
	if name == "" && cfg != nil && cfg.DefaultProvider != "" {
		name = strings.ToLower(cfg.DefaultProvider)
	}
	switch name {
	case "":
		return ai.ProviderOpenRouter
	case "local":
		return ai.ProviderOllama
	case "google":
		return ai.ProviderGemini
	}
	return name
}

func buildRuntime(cfg *cfgpkg.Global, providerName string, opts runtimeOptions) (ai.Runtime, error) {
	httpTimeout := 60 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		APIKey:      apiKeyFor(cfg, providerName),
	}

	if providerName == ai.ProviderOllama {
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && cfg != nil && cfg.OllamaHost != "" {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = "http://127.0.0.1:11434"
		}
		rc.Host = host
		if v := os.Getenv("DASHLOOM_OLLAMA_TIMEOUT_SEC"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				rc.HTTPTimeout = time.Duration(n) * time.Second
			}
		}
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}
	return ai.NewRuntime(providerName, rc)
}

// apiKeyFor prefers the provider's conventional environment variable over the
// configured api_key.
func apiKeyFor(cfg *cfgpkg.Global, providerName string) string {
	env := "OPENROUTER_API_KEY"
	if providerName == ai.ProviderGemini {
		env = "GEMINI_API_KEY"
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	if cfg != nil {
		return cfg.APIKey
	}
	return ""
}

func selectModel(p *project.Project, cfg *cfgpkg.Global, providerName, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p != nil && p.Config != nil && p.Config.Model != "" {
		return p.Config.Model
	}
	if cfg != nil && cfg.DefaultModel != "" && (cfg.DefaultProvider == "" || strings.EqualFold(cfg.DefaultProvider, providerName)) {
		return cfg.DefaultModel
	}
	if m, ok := ai.DefaultModels[providerName]; ok {
		return m
	}
	return ai.DefaultModels[ai.ProviderOpenRouter]
}

type suggesterOptions struct {
	runtimeOptions
	Model       string
	MaxTokens   int
	Temperature float64
	// Set marks which of MaxTokens and Temperature were given explicitly.
	MaxTokensSet   bool
	TemperatureSet bool
}

// buildSuggester wires a runtime and the effective generation settings.
func buildSuggester(p *project.Project, cfg *cfgpkg.Global, opts suggesterOptions) (*ai.Suggester, string, error) {
	providerName := resolveProvider(p, cfg, opts.ProviderFlag)
	rt, err := buildRuntime(cfg, providerName, opts.runtimeOptions)
	if err != nil {
		return nil, providerName, err
	}
	s := &ai.Suggester{
		Runtime:     rt,
		Model:       selectModel(p, cfg, providerName, opts.Model),
		MaxTokens:   2048,
		Temperature: 0.2,
	}
	if cfg != nil {
		if cfg.MaxTokens > 0 {
			s.MaxTokens = cfg.MaxTokens
		}
		s.Temperature = cfg.Temperature
	}
	if p != nil && p.Config != nil {
		if p.Config.MaxTokens > 0 {
			s.MaxTokens = p.Config.MaxTokens
		}
		if p.Config.Temperature > 0 {
			s.Temperature = p.Config.Temperature
		}
	}
	if opts.MaxTokensSet && opts.MaxTokens > 0 {
		s.MaxTokens = opts.MaxTokens
	}
	if opts.TemperatureSet {
		s.Temperature = opts.Temperature
	}
	return s, providerName, nil
}

// describeAIError adds an actionable hint to runtime errors.
func describeAIError(err error) error {
	if h := ai.Hint(err); h != "" {
		return fmt.Errorf("%w\n  hint: %s", err, h)
	}
	return err
}
