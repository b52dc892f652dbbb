package council

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/zoobzio/zyn"
)

// OpenRouterProvider implements Provider against the OpenRouter
// chat-completions API. One instance serves one model; a council roster
// typically gets one provider per member, with the member ID doubling as
// the model slug.
type OpenRouterProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	referer string
	title   string
}

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterOption configures an OpenRouterProvider.
type OpenRouterOption func(*OpenRouterProvider)

// WithBaseURL sets a custom base URL (for proxies or compatible APIs).
func WithBaseURL(url string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.client = client
	}
}

// WithReferer sets the HTTP-Referer attribution header OpenRouter uses
// for app rankings.
func WithReferer(referer string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.referer = referer
	}
}

// WithTitle sets the X-Title attribution header.
func WithTitle(title string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.title = title
	}
}

// NewOpenRouterProvider creates a provider for one OpenRouter model.
func NewOpenRouterProvider(apiKey, model string, opts ...OpenRouterOption) *OpenRouterProvider {
	p := &OpenRouterProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultOpenRouterBaseURL,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StatusError reports a non-2xx reply from a provider API. The code is
// preserved so callers can classify rate limits and outages.
type StatusError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider API status %d", e.Code)
	}
	return fmt.Sprintf("provider API status %d: %s", e.Code, e.Message)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Call implements Provider.
func (p *OpenRouterProvider) Call(ctx context.Context, messages []zyn.Message, temperature float32) (*zyn.ProviderResponse, error) {
	reqBody := chatRequest{
		Model:       p.model,
		Messages:    make([]chatMessage, len(messages)),
		Temperature: temperature,
	}
	for i, m := range messages {
		reqBody.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.referer != "" {
		req.Header.Set("HTTP-Referer", p.referer)
	}
	if p.title != "" {
		req.Header.Set("X-Title", p.title)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Message: apiErrorMessage(respBody)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return nil, &StatusError{Code: chatResp.Error.Code, Message: chatResp.Error.Message}
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	return &zyn.ProviderResponse{
		Content: chatResp.Choices[0].Message.Content,
		Usage: zyn.TokenUsage{
			Prompt:     chatResp.Usage.PromptTokens,
			Completion: chatResp.Usage.CompletionTokens,
			Total:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// Name implements Provider.
func (p *OpenRouterProvider) Name() string {
	return "openrouter:" + p.model
}

var _ Provider = (*OpenRouterProvider)(nil)

// apiErrorMessage pulls the error message out of an error envelope,
// falling back to a truncated raw body.
func apiErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	const limit = 200
	if len(body) > limit {
		body = body[:limit]
	}
	return string(body)
}

// NewOpenRouterCouncil wires a complete council against OpenRouter: one
// provider per roster member, member IDs as model slugs. Builder methods
// on the returned council still apply.
func NewOpenRouterCouncil(apiKey string, roster Roster, opts ...OpenRouterOption) (*Council, error) {
	gw := NewProviderGateway()
	for _, m := range roster.Participants {
		gw.Register(m.ID, NewOpenRouterProvider(apiKey, m.ID, opts...))
	}
	if !roster.Aggregator.IsParticipant() {
		gw.Register(roster.Aggregator.ID, NewOpenRouterProvider(apiKey, roster.Aggregator.ID, opts...))
	}
	return New(gw, roster)
}
