package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicClient adapts the Anthropic SDK to the provider Client surface.
type AnthropicClient struct {
	model string
	opts  []anthropicoption.RequestOption
}

// NewAnthropicClient creates the Anthropic adapter. Extra request options
// (e.g. a base URL override for tests) apply to every call.
func NewAnthropicClient(opts ...anthropicoption.RequestOption) *AnthropicClient {
	return &AnthropicClient{model: defaultAnthropicModel, opts: opts}
}

func (c *AnthropicClient) Tag() Tag { return Anthropic }

func (c *AnthropicClient) newClient(apiKey string) anthropic.Client {
	opts := append([]anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}, c.opts...)
	return anthropic.NewClient(opts...)
}

// Validate probes the key with a models-list request, which costs no tokens.
func (c *AnthropicClient) Validate(ctx context.Context, apiKey string) error {
	client := c.newClient(apiKey)
	_, err := client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return classifyAnthropic(err)
	}
	return nil
}

func (c *AnthropicClient) Generate(ctx context.Context, apiKey string, req GenerateRequest) (*GenerateResult, error) {
	client := c.newClient(apiKey)

	model := req.Model
	if model == "" {
		model = c.model
	}

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(req))),
		},
	})
	if err != nil {
		return nil, classifyAnthropic(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return &GenerateResult{Content: sb.String(), Model: model}, nil
}

func classifyAnthropic(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return classifyStatus(apierr.StatusCode, retryAfterHeader(apierr.Response))
	}
	return errors.Join(ErrUnavailable, err)
}
