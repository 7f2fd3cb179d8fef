package botconfig

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/botpanel/internal/models"
)

func sampleConfig() models.BotConfig {
	return models.BotConfig{
		AIEnabled: true,
		Providers: []models.Provider{
			{Name: models.ProviderOpenAI, Enabled: true, APIKey: "sk-1"},
			{Name: models.ProviderGemini, Enabled: false},
		},
		SystemPrompt:  "  You are friendly.  ",
		CannedEnabled: true,
		CannedResponses: []models.CannedResponse{
			{Trigger: "hi", Response: "hello"},
			{Trigger: "bye", Response: "see you"},
			{Trigger: "hi", Response: "hello"},
			{Trigger: "hi", Response: "hey"},
		},
		GreetingEnabled: true,
		GreetingMessage: "\tHello everyone!\n",
		TargetRoom:      " room-1 ",
	}
}

func TestValidateNormalizes(t *testing.T) {
	got, err := Validate(sampleConfig())
	require.NoError(t, err)

	assert.Equal(t, "You are friendly.", got.SystemPrompt)
	assert.Equal(t, "Hello everyone!", got.GreetingMessage)
	assert.Equal(t, "room-1", got.TargetRoom)
	assert.Equal(t, "gpt-3.5-turbo", got.Providers[0].Model)
	assert.Empty(t, got.Providers[1].Model)
	assert.Equal(t, []models.CannedResponse{
		{Trigger: "hi", Response: "hello"},
		{Trigger: "bye", Response: "see you"},
		{Trigger: "hi", Response: "hey"},
	}, got.CannedResponses)
}

func TestValidateIsIdempotent(t *testing.T) {
	configs := []models.BotConfig{
		sampleConfig(),
		{},
		{CannedEnabled: true, CannedResponses: []models.CannedResponse{{Trigger: "a"}, {Trigger: "a"}}},
	}
	for _, cfg := range configs {
		once, err := Validate(cfg)
		require.NoError(t, err)
		twice, err := Validate(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	cfg := sampleConfig()
	_, err := Validate(cfg)
	require.NoError(t, err)
	assert.Len(t, cfg.CannedResponses, 4)
	assert.Empty(t, cfg.Providers[0].Model)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*models.BotConfig){
		"ai enabled, all providers disabled": func(c *models.BotConfig) {
			c.Providers[0].Enabled = false
		},
		"ai enabled, no providers": func(c *models.BotConfig) {
			c.Providers = nil
		},
		"enabled provider without key": func(c *models.BotConfig) {
			c.Providers[1].Enabled = true
		},
		"empty trigger": func(c *models.BotConfig) {
			c.CannedResponses = append(c.CannedResponses, models.CannedResponse{Trigger: "  ", Response: "x"})
		},
		"unknown provider": func(c *models.BotConfig) {
			c.Providers = append(c.Providers, models.Provider{Name: "Claude"})
		},
		"duplicate provider": func(c *models.BotConfig) {
			c.Providers = append(c.Providers, models.Provider{Name: models.ProviderOpenAI})
		},
		"bad room": func(c *models.BotConfig) {
			c.TargetRoom = "not a room"
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := sampleConfig()
			mutate(&cfg)
			_, err := Validate(cfg)
			var verr *models.ValidationError
			assert.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
		})
	}
}

func TestCannedWithAIDisabledIsValid(t *testing.T) {
	cfg := sampleConfig()
	cfg.AIEnabled = false
	cfg.Providers[0].Enabled = false
	_, err := Validate(cfg)
	assert.NoError(t, err)
}
