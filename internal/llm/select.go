package llm

import (
	"github.com/rs/zerolog/log"

	"github.com/freeeve/mercury-council/api/internal/config"
)

// Select picks the process-wide provider from configuration. The test
// environment always gets the fake provider, whatever LLM_PROVIDER says.
func Select(cfg *config.Config) Provider {
	if cfg.IsTest() {
		return NewFake()
	}
	if cfg.LLMProvider == "openai" && cfg.OpenAIAPIKey != "" {
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	if cfg.LLMProvider == "openai" {
		log.Warn().Msg("LLM_PROVIDER=openai but OPENAI_API_KEY is unset, falling back to fake provider")
	}
	return NewFake()
}
