package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mcolombo/ensemble/internal/reliability"
)

// AnthropicGenerator backs generation with the Anthropic Messages API.
type AnthropicGenerator struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	return &AnthropicGenerator{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

func (g *AnthropicGenerator) Name() string { return "anthropic" }

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", g.classify(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", Permanent(g.Name(), fmt.Errorf("empty response content"))
	}
	return sb.String(), nil
}

func (g *AnthropicGenerator) classify(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if reliability.IsRetryableHTTPStatus(apierr.StatusCode) {
			return Transient(g.Name(), err)
		}
		return Permanent(g.Name(), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return Permanent(g.Name(), err)
}
