package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mcolombo/ensemble/internal/reliability"
)

// OpenAIGenerator backs generation with the OpenAI Chat Completions API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:               g.model,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Temperature:         openai.Float(0.7),
	})
	if err != nil {
		return "", g.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", Permanent(g.Name(), fmt.Errorf("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps SDK errors into transient/permanent failure classes before
// they reach the failover state machine.
func (g *OpenAIGenerator) classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if reliability.IsRetryableHTTPStatus(apierr.StatusCode) {
			return Transient(g.Name(), err)
		}
		return Permanent(g.Name(), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// Network-level failures without a status are worth one failover hop
	// but not a primary retry.
	return Permanent(g.Name(), err)
}
