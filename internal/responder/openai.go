package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/botpanel/internal/models"
	"go.uber.org/zap"
)

// Chat replies are kept short.
const replyMaxTokens = 60

type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIProvider(apiKey, model string, logger *zap.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

func (p *OpenAIProvider) Name() models.ProviderName { return models.ProviderOpenAI }

func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt, message string) (string, error) {
	resp, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: p.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: message,
				},
			},
			MaxTokens: replyMaxTokens,
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	p.logger.Debug("OpenAI reply", zap.String("model", p.model), zap.Int("length", len(reply)))
	return reply, nil
}
