package generator

import (
	"fmt"

	"github.com/hyperjump/kaiwa/internal/config"
	"github.com/hyperjump/kaiwa/internal/models"
)

// New builds the generator named by cfg.Provider and applies the configured
// rate limit. Hosted providers need the API key from cfg.APIKeyEnv.
func New(cfg *config.GeneratorConfig) (Generator, error) {
	var g Generator
	switch cfg.Provider {
	case config.GeneratorGroq, config.GeneratorOpenAI:
		oc := OpenAIConfig{
			APIKey:      cfg.APIKey(),
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout(),
		}
		var (
			og  *OpenAI
			err error
		)
		if cfg.Provider == config.GeneratorGroq {
			og, err = NewGroq(oc)
		} else {
			og, err = NewOpenAI(oc)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s generator: %v (set %s)", models.ErrConfiguration, cfg.Provider, err, cfg.APIKeyEnv)
		}
		g = og
	case config.GeneratorOllama:
		g = NewOllama(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout(),
		})
	default:
		return nil, fmt.Errorf("%w: unknown generator provider %q", models.ErrConfiguration, cfg.Provider)
	}
	return NewRateLimited(g, cfg.RequestsPerSecond, cfg.Burst), nil
}
