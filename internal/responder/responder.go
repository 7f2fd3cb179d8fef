// Package responder decides what a bot says in reply to a chat line:
// canned responses first, then AI providers in configured order.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xaenox/botpanel/internal/models"
	"go.uber.org/zap"
)

const DefaultSystemPrompt = "You are a helpful chat bot."

// ErrNoReply means neither a canned response nor an AI provider produced text.
var ErrNoReply = errors.New("no reply produced")

// Provider is one AI completion backend.
type Provider interface {
	Name() models.ProviderName
	Complete(ctx context.Context, systemPrompt, message string) (string, error)
}

type Reply struct {
	Text string
	// Source is "canned" or the name of the provider that answered.
	Source string
}

type Engine struct {
	cfg       models.BotConfig
	providers []Provider
	logger    *zap.Logger
}

func NewEngine(cfg models.BotConfig, providers []Provider, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, providers: providers, logger: logger}
}

// Reply consults canned responses whenever they are enabled, regardless of
// the AI switch, and only falls through to AI when none matched.
func (e *Engine) Reply(ctx context.Context, message string) (Reply, error) {
	if e.cfg.CannedEnabled {
		if text, ok := MatchCanned(message, e.cfg.CannedResponses); ok {
			return Reply{Text: text, Source: "canned"}, nil
		}
	}
	if !e.cfg.AIEnabled {
		return Reply{}, ErrNoReply
	}
	return e.Generate(ctx, message)
}

// Generate asks the AI providers only. The first non-empty answer wins.
func (e *Engine) Generate(ctx context.Context, message string) (Reply, error) {
	if len(e.providers) == 0 {
		return Reply{}, fmt.Errorf("no AI provider configured: %w", ErrNoReply)
	}

	prompt := e.cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}

	var lastErr error
	for _, p := range e.providers {
		text, err := p.Complete(ctx, prompt, message)
		if err != nil {
			e.logger.Error("AI provider failed",
				zap.Error(err),
				zap.String("provider", string(p.Name())))
			lastErr = err
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		return Reply{Text: text, Source: string(p.Name())}, nil
	}
	if lastErr != nil {
		return Reply{}, fmt.Errorf("all AI providers failed: %w", lastErr)
	}
	return Reply{}, ErrNoReply
}

// KeyResolver turns a stored API key handle into the key itself.
type KeyResolver func(ctx context.Context, handle string) (string, error)

// BuildProviders constructs clients for every enabled provider in cfg.
func BuildProviders(ctx context.Context, cfg models.BotConfig, resolve KeyResolver, logger *zap.Logger) ([]Provider, error) {
	var providers []Provider
	for _, p := range cfg.EnabledProviders() {
		key, err := resolve(ctx, p.APIKey)
		if err != nil {
			return nil, fmt.Errorf("resolving %s API key: %w", p.Name, err)
		}
		switch p.Name {
		case models.ProviderOpenAI:
			providers = append(providers, NewOpenAIProvider(key, p.Model, logger))
		case models.ProviderGemini:
			g, err := NewGeminiProvider(ctx, key, p.Model)
			if err != nil {
				return nil, err
			}
			providers = append(providers, g)
		default:
			return nil, fmt.Errorf("unsupported provider %q", p.Name)
		}
	}
	return providers, nil
}
