// Package provider contains the thin adapters between the credential core
// and the external language-model services. Each provider exposes a key
// validation probe and a generation call; everything else (storage,
// sessions, rate limiting) lives outside this package.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Tag identifies a supported provider.
type Tag string

const (
	Anthropic Tag = "anthropic"
	OpenAI    Tag = "openai"
	Gemini    Tag = "gemini"
)

// Tags lists every supported provider.
func Tags() []Tag {
	return []Tag{Anthropic, OpenAI, Gemini}
}

// ParseTag validates a provider tag from the request path.
func ParseTag(s string) (Tag, error) {
	switch Tag(s) {
	case Anthropic, OpenAI, Gemini:
		return Tag(s), nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// DisplayName returns the human-readable provider name used in fixed
// client-facing messages.
func (t Tag) DisplayName() string {
	switch t {
	case Anthropic:
		return "Anthropic"
	case OpenAI:
		return "OpenAI"
	case Gemini:
		return "Gemini"
	}
	return string(t)
}

// Sentinel errors the core maps onto its HTTP taxonomy.
var (
	// ErrAuth means the provider rejected the API key.
	ErrAuth = errors.New("provider rejected the API key")
	// ErrUnavailable means the provider was unreachable or returned a 5xx.
	ErrUnavailable = errors.New("provider unavailable")
)

// RateLimitError means the provider throttled the request. RetryAfter is
// zero when the provider did not say how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "provider rate limited the request"
}

// GenerateRequest carries the content-generation inputs.
type GenerateRequest struct {
	Topic    string
	Tone     string
	Audience string
	Model    string
}

// GenerateResult is the provider-agnostic generation envelope.
type GenerateResult struct {
	Content string
	Model   string
}

// Client validates API keys and generates content for one provider. The
// API key is passed per call and never retained; validation strategy is
// per-provider (all current implementations use a models-list probe, which
// costs no tokens but is not guaranteed by every provider to exercise the
// same permission scope as generation).
type Client interface {
	Tag() Tag
	Validate(ctx context.Context, apiKey string) error
	Generate(ctx context.Context, apiKey string, req GenerateRequest) (*GenerateResult, error)
}
