// Package openrouter is a structured-completion client for OpenRouter.ai and
// other OpenAI-compatible chat completion endpoints.
//
// Complete forces a single function call whose parameters are a JSON Schema and
// returns the call's arguments once they validate against that schema. There is
// no internal retry: callers decide what a failure means.
package openrouter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/newsdesk/ai/schema"
	"github.com/teranos/newsdesk/ai/tracker"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
	"github.com/teranos/newsdesk/version"
)

const (
	// DefaultModel is the fallback model when none is specified.
	// Should match the default in am/defaults.go.
	DefaultModel = "openai/gpt-4o-mini"

	// DefaultBaseURL is the OpenRouter API root
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds a single completion round trip
	DefaultTimeout = 120 * time.Second

	// maxErrorBody caps how much of an upstream error body is kept in error details
	maxErrorBody = 512
)

// Completion error kinds. Every failure returned by Complete matches exactly one of these.
var (
	ErrRateLimited       = errors.New("completion service rate limited")
	ErrPaymentRequired   = errors.New("completion service requires payment")
	ErrUpstream          = errors.New("completion service error")
	ErrMalformedResponse = errors.New("malformed completion response")
)

// Client calls a chat completion endpoint
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	config       Config
	usageTracker *tracker.UsageTracker
	logger       *zap.SugaredLogger
}

// Config holds completion client configuration
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   *float64 // nil = use default (0.2)
	MaxTokens     *int     // nil = use default (1000)
	Timeout       time.Duration
	Logger        *zap.SugaredLogger // nil = nop logger
	DB            *sql.DB            // Database for usage tracking (nil disables tracking)
	OperationType string             // Operation type for tracking context (e.g., "editorial-context.update")
}

// NewClient creates a new client with defaults applied
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Temperature == nil {
		defaultTemp := 0.2
		config.Temperature = &defaultTemp
	}
	if config.MaxTokens == nil {
		defaultTokens := 1000
		config.MaxTokens = &defaultTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	var usageTracker *tracker.UsageTracker
	if config.DB != nil {
		usageTracker = tracker.NewUsageTracker(config.DB)
	}

	log := config.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Client{
		apiKey:       config.APIKey,
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: config.Timeout},
		config:       config,
		usageTracker: usageTracker,
		logger:       log,
	}
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Model returns the model requests are sent to
func (c *Client) Model() string {
	return c.config.Model
}

// SetHTTPClient overrides the HTTP client (tests)
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

type entityKey struct{}

type entity struct {
	kind string
	id   string
}

// WithEntity tags ctx so usage rows recorded by Complete name the record they were made for
func WithEntity(ctx context.Context, kind, id string) context.Context {
	return context.WithValue(ctx, entityKey{}, entity{kind: kind, id: id})
}

func entityFrom(ctx context.Context) entity {
	e, _ := ctx.Value(entityKey{}).(entity)
	return e
}

// Complete requests one structured completion. The model is forced to call a
// function named after s whose parameters are s's document; the returned
// arguments have been validated against s.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, s *schema.Schema) (json.RawMessage, error) {
	if s == nil {
		return nil, errors.New("completion schema is required")
	}
	if !c.IsConfigured() {
		return nil, errors.Mark(errors.WithHint(
			errors.New("completion service API key not configured"),
			"Set openrouter.api_key in am.toml or export OPENROUTER_API_KEY"),
			ErrUpstream)
	}

	req := chatCompletionRequest{
		Model:       c.config.Model,
		Messages:    buildMessages(systemPrompt, userPrompt),
		Temperature: *c.config.Temperature,
		MaxTokens:   *c.config.MaxTokens,
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        s.Name(),
				Description: "Return the requested fields",
				Parameters:  s.Document(),
			},
		}},
		ToolChoice: &toolChoice{Type: "function", Function: toolChoiceFunction{Name: s.Name()}},
	}

	c.logger.Debugw("Completion request",
		logger.FieldModel, req.Model,
		"schema", s.Name(),
		"prompt_chars", len(userPrompt),
	)

	call := usageCall{started: time.Now(), entity: entityFrom(ctx)}
	resp, statusCode, err := c.send(ctx, req)
	call.statusCode = statusCode
	if err != nil {
		c.track(call, nil, err)
		return nil, err
	}

	args, err := extractArguments(resp, s.Name())
	if err == nil {
		if verr := s.Validate(args); verr != nil {
			err = errors.Mark(errors.Wrap(verr, "completion arguments rejected"), ErrMalformedResponse)
		}
	}
	c.track(call, &resp.Usage, err)
	if err != nil {
		return nil, err
	}

	c.logger.Debugw("Completion response",
		logger.FieldModel, resp.Model,
		logger.FieldTokens, resp.Usage.TotalTokens,
		logger.FieldDurationMS, time.Since(call.started).Milliseconds(),
	)
	return args, nil
}

// send performs the HTTP round trip and classifies failures
func (c *Client) send(ctx context.Context, req chatCompletionRequest) (*chatCompletionResponse, int, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", version.Get().UserAgent())
	if c.config.OperationType != "" {
		httpReq.Header.Set("X-Title", fmt.Sprintf("%s/%s", version.Product, c.config.OperationType))
	} else {
		httpReq.Header.Set("X-Title", version.Product)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, errors.Mark(errors.Wrap(err, "completion request failed"), ErrUpstream)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Mark(errors.Wrap(err, "failed to read completion response"), ErrUpstream)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, statusError(resp, respBody)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, resp.StatusCode, errors.Mark(errors.Wrap(err, "failed to decode completion response"), ErrMalformedResponse)
	}
	return &chatResp, resp.StatusCode, nil
}

func statusError(resp *http.Response, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody]
	}

	var err error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		err = errors.Wrapf(ErrRateLimited, "status %d", resp.StatusCode)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			err = errors.WithHintf(err, "Retry after %s seconds", ra)
		}
	case http.StatusPaymentRequired:
		err = errors.WithHint(errors.Wrapf(ErrPaymentRequired, "status %d", resp.StatusCode),
			"Add credits to the OpenRouter account")
	default:
		err = errors.Wrapf(ErrUpstream, "status %d", resp.StatusCode)
	}
	if snippet != "" {
		err = errors.WithDetail(err, snippet)
	}
	return err
}

// extractArguments pulls the forced function call's arguments out of the first choice
func extractArguments(resp *chatCompletionResponse, name string) (json.RawMessage, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(ErrMalformedResponse, "no choices in completion response")
	}
	calls := resp.Choices[0].Message.ToolCalls
	for _, call := range calls {
		if call.Function.Name != name {
			continue
		}
		args := strings.TrimSpace(call.Function.Arguments)
		if args == "" || !json.Valid([]byte(args)) {
			return nil, errors.Wrapf(ErrMalformedResponse, "arguments for %s are not valid JSON", name)
		}
		return json.RawMessage(args), nil
	}
	return nil, errors.Wrapf(ErrMalformedResponse, "no call to %s in completion response (%d tool calls)", name, len(calls))
}
