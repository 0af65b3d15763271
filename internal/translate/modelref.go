package translate

import (
	"strings"

	"shuttle/internal/services"
	"shuttle/internal/services/llm"
)

// ModelRef identifies a chat model either by bare name, inheriting the
// default endpoint and credential, or fully configured with its own endpoint.
// Refs resolve once at construction time into a concrete client binding.
type ModelRef struct {
	Model   string
	BaseURL string
	APIKey  string
	Name    string
}

// Named builds a ref that rides on the default endpoint.
func Named(model string) ModelRef {
	return ModelRef{Model: model}
}

// DisplayName returns the configured name, falling back to the model id's
// last path element.
func (r ModelRef) DisplayName() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	model := strings.TrimSpace(r.Model)
	if idx := strings.LastIndex(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}

// binding is a resolved ref: the shared client for its endpoint pair plus
// the model id and prompt to use with it.
type binding struct {
	client  *llm.Client
	model   string
	prompt  string
	display string
}

// resolve materializes the ref against the pool, filling unset endpoint
// fields from the defaults.
func (r ModelRef) resolve(pool *llm.Pool, defaults llm.Config, prompt string) (binding, error) {
	model := strings.TrimSpace(r.Model)
	if model == "" {
		return binding{}, services.Wrap(services.ErrConfiguration, "translate", "resolve model", "model id required", nil)
	}
	cfg := llm.Config{
		APIKey:         strings.TrimSpace(r.APIKey),
		BaseURL:        strings.TrimSpace(r.BaseURL),
		TimeoutSeconds: defaults.TimeoutSeconds,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = defaults.APIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	return binding{
		client:  pool.Get(cfg),
		model:   model,
		prompt:  prompt,
		display: r.DisplayName(),
	}, nil
}
