package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ludus/internal/logger"
)

// OpenAIChatClient talks to any /v1/chat/completions endpoint (OpenAI,
// DeepSeek, Qwen, Gemini's OpenAI surface). 429 and 5xx responses get a
// bounded retry with Retry-After support; everything else fails fast.
type OpenAIChatClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	ProviderTag  string
	Trader       string
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
	ExtraHeaders map[string]string

	// HTTPClient overrides the default client in tests.
	HTTPClient *http.Client
}

const (
	defaultChatTimeout = 60 * time.Second
	defaultChatRetries = 2
	retryBackoffBase   = 800 * time.Millisecond
	retryBackoffCap    = 8 * time.Second
)

// Chat sends one system+user exchange and returns the assistant text.
func (c *OpenAIChatClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	url := c.endpoint()
	body, err := json.Marshal(c.payload(systemPrompt, userPrompt))
	if err != nil {
		return "", fmt.Errorf("encoding chat payload failed: %w", err)
	}
	logger.LogLLMRequest(c.ProviderTag, c.Trader, systemPrompt, userPrompt, string(body))
	logger.Debugf("[llm] POST %s model=%s trader=%s headers=%v", url, c.Model, c.Trader, c.maskedHeaders())

	httpc := c.HTTPClient
	if httpc == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultChatTimeout
		}
		httpc = &http.Client{Timeout: timeout}
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultChatRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("building chat request failed: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
		for k, v := range c.ExtraHeaders {
			req.Header.Set(k, v)
		}

		resp, err := httpc.Do(req)
		if err != nil {
			return "", fmt.Errorf("chat request failed: %w", err)
		}
		if resp.StatusCode/100 == 2 {
			content, err := decodeChatContent(resp.Body)
			resp.Body.Close()
			if err != nil {
				return "", err
			}
			logger.LogLLMResponse(c.ProviderTag, c.Trader, content)
			return content, nil
		}
		status := resp.StatusCode
		msg := decodeChatError(resp.Body, resp.Status)
		retryAfter := resp.Header.Get("Retry-After")
		resp.Body.Close()
		lastErr = fmt.Errorf("chat status=%d: %s", status, msg)
		if !retryableStatus(status) || attempt >= maxRetries {
			break
		}
		wait := backoffDelay(attempt, retryAfter)
		logger.Warnf("[llm] %s/%s status=%d, retrying in %s (attempt %d/%d)",
			c.ProviderTag, c.Model, status, wait, attempt+1, maxRetries)
		if !sleepWithContext(ctx, wait) {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// endpoint normalizes BaseURL so a configured URL with or without the
// /chat/completions suffix lands on the same path.
func (c *OpenAIChatClient) endpoint() string {
	url := strings.TrimSpace(c.BaseURL)
	if url == "" {
		url = defaultOpenAIURL
	}
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *OpenAIChatClient) payload(systemPrompt, userPrompt string) map[string]any {
	messages := make([]map[string]string, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})
	temperature := c.Temperature
	if temperature <= 0 {
		temperature = 0.5
	}
	return map[string]any{
		"model":       c.Model,
		"messages":    messages,
		"temperature": temperature,
	}
}

func (c *OpenAIChatClient) maskedHeaders() map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" {
		out["Authorization"] = "Bearer " + maskKey(c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "key") || strings.Contains(lk, "token") || strings.Contains(lk, "auth") {
			v = maskKey(v)
		}
		out[k] = v
	}
	return out
}

func decodeChatContent(r io.Reader) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding chat response failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func decodeChatError(r io.Reader, fallback string) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(r).Decode(&parsed)
	if msg := strings.TrimSpace(parsed.Error.Message); msg != "" {
		return msg
	}
	return fallback
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func backoffDelay(attempt int, retryAfter string) time.Duration {
	if ra := strings.TrimSpace(retryAfter); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	wait := retryBackoffBase << attempt
	if wait > retryBackoffCap {
		wait = retryBackoffCap
	}
	return wait
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
