package provider

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient adapts the OpenAI SDK to the provider Client surface.
type OpenAIClient struct {
	model string
	opts  []openaioption.RequestOption
}

// NewOpenAIClient creates the OpenAI adapter.
func NewOpenAIClient(opts ...openaioption.RequestOption) *OpenAIClient {
	return &OpenAIClient{model: defaultOpenAIModel, opts: opts}
}

func (c *OpenAIClient) Tag() Tag { return OpenAI }

func (c *OpenAIClient) newClient(apiKey string) openai.Client {
	opts := append([]openaioption.RequestOption{openaioption.WithAPIKey(apiKey)}, c.opts...)
	return openai.NewClient(opts...)
}

// Validate probes the key with a models-list request.
func (c *OpenAIClient) Validate(ctx context.Context, apiKey string) error {
	client := c.newClient(apiKey)
	if _, err := client.Models.List(ctx); err != nil {
		return classifyOpenAI(err)
	}
	return nil
}

func (c *OpenAIClient) Generate(ctx context.Context, apiKey string, req GenerateRequest) (*GenerateResult, error) {
	client := c.newClient(apiKey)

	model := req.Model
	if model == "" {
		model = c.model
	}

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(BuildPrompt(req)),
		},
	})
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Join(ErrUnavailable, errors.New("empty completion response"))
	}
	return &GenerateResult{Content: resp.Choices[0].Message.Content, Model: model}, nil
}

func classifyOpenAI(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return classifyStatus(apierr.StatusCode, retryAfterHeader(apierr.Response))
	}
	return errors.Join(ErrUnavailable, err)
}
