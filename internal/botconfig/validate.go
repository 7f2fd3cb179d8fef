// Package botconfig validates and normalizes bot configurations submitted
// from the dashboard. Everything here is pure; nothing touches the store.
package botconfig

import (
	"fmt"
	"strings"

	"github.com/xaenox/botpanel/internal/models"
)

var defaultModels = map[models.ProviderName]string{
	models.ProviderOpenAI: "gpt-3.5-turbo",
	models.ProviderGemini: "gemini-1.5-flash",
}

// DefaultModel returns the model used when an enabled provider names none.
func DefaultModel(name models.ProviderName) string {
	return defaultModels[name]
}

// Validate checks cfg and returns its normalized form. The result is a fixed
// point: validating it again yields the same config.
func Validate(cfg models.BotConfig) (models.BotConfig, error) {
	out := cfg.Clone()

	seen := make(map[models.ProviderName]bool, len(out.Providers))
	enabled := 0
	for i := range out.Providers {
		p := &out.Providers[i]
		field := fmt.Sprintf("providers[%d]", i)

		if _, known := defaultModels[p.Name]; !known {
			return models.BotConfig{}, &models.ValidationError{Field: field, Reason: fmt.Sprintf("unknown provider %q", p.Name)}
		}
		if seen[p.Name] {
			return models.BotConfig{}, &models.ValidationError{Field: field, Reason: fmt.Sprintf("provider %s listed twice", p.Name)}
		}
		seen[p.Name] = true

		p.Model = strings.TrimSpace(p.Model)
		if !p.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(p.APIKey) == "" {
			return models.BotConfig{}, &models.ValidationError{Field: field + ".api_key", Reason: fmt.Sprintf("%s is enabled but has no API key", p.Name)}
		}
		if p.Model == "" {
			p.Model = DefaultModel(p.Name)
		}
	}
	if out.AIEnabled && enabled == 0 {
		return models.BotConfig{}, &models.ValidationError{Field: "providers", Reason: "AI is enabled but no provider is enabled"}
	}

	out.SystemPrompt = strings.TrimSpace(out.SystemPrompt)
	out.GreetingMessage = strings.TrimSpace(out.GreetingMessage)

	out.TargetRoom = strings.TrimSpace(out.TargetRoom)
	if out.TargetRoom != "" {
		if err := models.ValidateRoomRef(out.TargetRoom); err != nil {
			return models.BotConfig{}, err
		}
	}

	canned, err := normalizeCanned(out.CannedResponses)
	if err != nil {
		return models.BotConfig{}, err
	}
	out.CannedResponses = canned

	return out, nil
}

// normalizeCanned drops repeated (trigger, response) pairs, keeping the first
// occurrence. Order decides matching precedence and is preserved.
func normalizeCanned(in []models.CannedResponse) ([]models.CannedResponse, error) {
	if in == nil {
		return nil, nil
	}
	seen := make(map[models.CannedResponse]bool, len(in))
	out := make([]models.CannedResponse, 0, len(in))
	for i, c := range in {
		if strings.TrimSpace(c.Trigger) == "" {
			return nil, &models.ValidationError{Field: fmt.Sprintf("canned_responses[%d].trigger", i), Reason: "trigger is empty"}
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}
