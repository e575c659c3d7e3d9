package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/camuig/coin-sim/internal/config"
	"github.com/camuig/coin-sim/internal/logger"
	"github.com/camuig/coin-sim/internal/market"
)

// HeadlineClient asks an OpenAI-compatible chat model to dress up market
// event headlines before they are broadcast.
type HeadlineClient struct {
	client *openai.Client
	model  string
	cfg    *config.Config
	logger *logger.Logger
}

func NewHeadlineClient(cfg *config.Config, log *logger.Logger) *HeadlineClient {
	ocfg := openai.DefaultConfig(cfg.Headlines.APIKey)
	ocfg.BaseURL = cfg.Headlines.BaseURL

	return &HeadlineClient{
		client: openai.NewClientWithConfig(ocfg),
		model:  cfg.Headlines.Model,
		cfg:    cfg,
		logger: log,
	}
}

func (c *HeadlineClient) Rewrite(ctx context.Context, ev market.Event) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HeadlinesTimeout())
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildEventPrompt(ev)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("headline API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("headline model returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	c.logger.Debug("headline raw response", "content", raw)

	headline, err := ParseHeadline(raw)
	if err != nil {
		return "", fmt.Errorf("parse headline response: %w", err)
	}
	return headline, nil
}

// Headline returns the rewritten headline, or the event's own message when
// the model is unavailable.
func (c *HeadlineClient) Headline(ctx context.Context, ev market.Event) string {
	h, err := c.Rewrite(ctx, ev)
	if err != nil {
		c.logger.Warn("headline rewrite failed, using event message", "error", err)
		return ev.Message
	}
	return h
}
