package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 512
	defaultTimeout   = 30 * time.Second
)

// Config is the immutable invocation setup handed over by main.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// Client implements interpretation.ModelClient on top of an OpenAI-compatible
// chat completions endpoint.
type Client struct {
	*openai.Client
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{}
	return &Client{Client: openai.NewClientWithConfig(oc), cfg: cfg}
}

// Model returns the model identifier requests are sent to.
func (c *Client) Model() string { return c.cfg.Model }

// Invoke sends one chat completion and returns the first choice's text unmodified.
func (c *Client) Invoke(ctx context.Context, img interpretation.Image, p interpretation.Prompt) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	dataURI := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: p.User},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURI,
						Detail: openai.ImageURLDetailAuto,
					}},
				},
			},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(c.cfg.Model) {
		req.MaxCompletionTokens = c.cfg.MaxTokens
	} else {
		req.MaxTokens = c.cfg.MaxTokens
		req.Temperature = c.cfg.Temperature
	}

	resp, err := c.CreateChatCompletion(callCtx, req)
	if err != nil {
		return "", classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", interpretation.NewError(interpretation.KindUpstreamMalformedResponse, "completion has no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// Check asks the endpoint for the configured model; used by /health.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	if _, err := c.GetModel(ctx, c.cfg.Model); err != nil {
		return classify(ctx, err)
	}
	return nil
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// classify maps go-openai and transport errors onto the interpretation taxonomy.
// parent is the caller's context, used to tell caller cancellation from our own timeout.
func classify(parent context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(parent.Err(), context.Canceled) {
		return interpretation.NewError(interpretation.KindUpstreamUnavailable, "request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return interpretation.NewError(interpretation.KindUpstreamTimeout, "model call timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return interpretation.NewError(interpretation.KindUpstreamTimeout, "model call timed out", err)
	}

	if status, ok := httpStatus(err); ok {
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return interpretation.NewError(interpretation.KindUpstreamAuthError, fmt.Sprintf("status %d", status), err)
		case status == http.StatusTooManyRequests || status >= 500:
			return interpretation.NewError(interpretation.KindUpstreamUnavailable, fmt.Sprintf("status %d", status), err)
		case status >= 400:
			return interpretation.NewError(interpretation.KindInvalidInput, fmt.Sprintf("request rejected with status %d", status), err)
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return interpretation.NewError(interpretation.KindUpstreamUnavailable, "transport failure", err)
	}
	// 2xx with a body go-openai could not decode
	return interpretation.NewError(interpretation.KindUpstreamMalformedResponse, "failed to create chat completion", err)
}

func httpStatus(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
