package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/cascade/internal/config"
	"github.com/ShayCichocki/cascade/internal/llm"
)

// newCompleter builds the completion client from loaded configuration.
func newCompleter(cfg *config.Config) (*llm.Client, error) {
	clientCfg := llm.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
	}

	if !cfg.Anthropic.UseBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w\n\nSet ANTHROPIC_API_KEY or add anthropic.api_key to %s", err, config.GetUserConfigPath())
		}
		clientCfg.APIKey = key
	}

	client, err := llm.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}
