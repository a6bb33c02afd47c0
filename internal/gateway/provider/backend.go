// Package provider constructs the language-model backends traders talk to.
// Every supported variant speaks the OpenAI chat-completions wire shape;
// variants differ only in endpoint and credential, so dispatch happens once
// at construction and the rest of the system sees text in, text out.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrUnknownProvider   = errors.New("unknown provider")
)

// Backend is one trader's connection to its language model.
type Backend interface {
	Provider() string
	Model() string
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// BackendSpec carries everything needed to construct one backend. Trader
// labels the LLM dump; APIKeyEnv names the credential, which is resolved
// through the capability descriptor rather than the environment.
type BackendSpec struct {
	Trader      string
	Provider    string
	Model       string
	APIURL      string
	APIKeyEnv   string
	Headers     map[string]string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// Recognized provider tags. openai defaults its endpoint; the rest are
// OpenAI-compatible and must configure api_url.
const (
	TagOpenAI     = "openai"
	TagDeepSeek   = "deepseek"
	TagQwen       = "qwen"
	TagGemini     = "gemini"
	TagCompatible = "openai-compatible"
)

const defaultOpenAIURL = "https://api.openai.com/v1"

// NewBackend dispatches on the provider tag. An unknown tag or an absent
// credential fails construction; the caller decides whether that sinks the
// whole run or just one trader.
func NewBackend(spec BackendSpec, caps Capabilities) (Backend, error) {
	tag := strings.ToLower(strings.TrimSpace(spec.Provider))
	model := strings.TrimSpace(spec.Model)
	if model == "" {
		return nil, fmt.Errorf("provider %q: model is required", tag)
	}
	baseURL := strings.TrimSpace(spec.APIURL)
	switch tag {
	case TagOpenAI:
		if baseURL == "" {
			baseURL = defaultOpenAIURL
		}
	case TagDeepSeek, TagQwen, TagGemini, TagCompatible:
		if baseURL == "" {
			return nil, fmt.Errorf("provider %q requires api_url", tag)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, spec.Provider)
	}
	key, ok := caps.Key(spec.APIKeyEnv)
	if !ok {
		return nil, fmt.Errorf("%w: provider %q expects %s in the environment", ErrMissingCredential, tag, spec.APIKeyEnv)
	}
	client := &OpenAIChatClient{
		BaseURL:      baseURL,
		APIKey:       key,
		Model:        model,
		ProviderTag:  tag,
		Trader:       strings.TrimSpace(spec.Trader),
		Temperature:  spec.Temperature,
		Timeout:      spec.Timeout,
		MaxRetries:   spec.MaxRetries,
		ExtraHeaders: spec.Headers,
	}
	return &chatBackend{provider: tag, model: model, client: client}, nil
}

// chatBackend binds a provider identity to its wire client.
type chatBackend struct {
	provider string
	model    string
	client   *OpenAIChatClient
}

func (b *chatBackend) Provider() string { return b.provider }

func (b *chatBackend) Model() string { return b.model }

func (b *chatBackend) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return b.client.Chat(ctx, systemPrompt, userPrompt)
}
