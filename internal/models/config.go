package models

// ProviderName identifies an AI completion backend.
type ProviderName string

const (
	ProviderOpenAI ProviderName = "OpenAI"
	ProviderGemini ProviderName = "Gemini"
)

// Provider is one AI backend entry of a bot configuration. APIKey holds the
// plaintext key on submission and a secret handle once stored.
type Provider struct {
	Name    ProviderName `json:"name"`
	Enabled bool         `json:"enabled"`
	APIKey  string       `json:"api_key"`
	Model   string       `json:"model"`
}

type CannedResponse struct {
	Trigger  string `json:"trigger"`
	Response string `json:"response"`
}

// BotConfig is the persistent configuration, written by operators and read-only to the agent.
type BotConfig struct {
	AIEnabled       bool             `json:"ai_enabled"`
	Providers       []Provider       `json:"providers"`
	SystemPrompt    string           `json:"system_prompt"`
	CannedEnabled   bool             `json:"canned_enabled"`
	CannedResponses []CannedResponse `json:"canned_responses"`
	GreetingEnabled bool             `json:"greeting_enabled"`
	GreetingMessage string           `json:"greeting_message"`
	TargetRoom      string           `json:"target_room"`
}

func (c BotConfig) Clone() BotConfig {
	out := c
	if c.Providers != nil {
		out.Providers = append([]Provider(nil), c.Providers...)
	}
	if c.CannedResponses != nil {
		out.CannedResponses = append([]CannedResponse(nil), c.CannedResponses...)
	}
	return out
}

// EnabledProviders returns the enabled providers in configured order.
func (c BotConfig) EnabledProviders() []Provider {
	var out []Provider
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}
