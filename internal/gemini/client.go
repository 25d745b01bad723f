package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aical-app/aical/internal/metrics"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
)

type Part struct {
	Text string `json:"text"`
}

// Content is one role-tagged message sent to the model.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

func UserContent(text string) Content {
	return Content{Role: "user", Parts: []Part{{Text: text}}}
}

func ModelContent(text string) Content {
	return Content{Role: "model", Parts: []Part{{Text: text}}}
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

// text concatenates the parts of the first candidate.
func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Client talks to the Gemini generateContent endpoints.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds one-shot completions. Zero leaves them bounded only by
// the caller's context, as streams always are.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a client. An empty apiKey is accepted; every call then
// fails with ErrMissingAPIKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		model:      DefaultModel,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Model() string {
	return c.model
}

// Ready returns ErrMissingAPIKey when the client cannot make calls.
func (c *Client) Ready() error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (c *Client) endpoint(method string, query url.Values) string {
	u := fmt.Sprintf("%s/models/%s:%s", c.baseURL, url.PathEscape(c.model), method)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, endpoint string, body generateRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	return req, nil
}

// CompleteJSON runs a one-shot completion that asks the model for a JSON
// response and returns the raw text of the first candidate.
func (c *Client) CompleteJSON(ctx context.Context, contents []Content) (string, error) {
	if err := c.Ready(); err != nil {
		return "", err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, c.endpoint("generateContent", nil), generateRequest{
		Contents:         contents,
		GenerationConfig: &generationConfig{ResponseMIMEType: "application/json"},
	})
	if err != nil {
		return "", err
	}

	start := time.Now()
	raw, err := c.doJSONRequest(req)
	metrics.ModelRequestDuration.WithLabelValues("complete").Observe(time.Since(start).Seconds())
	if err != nil {
		observeOutcome("complete", err)
		return "", err
	}

	var payload generateResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		observeOutcome("complete", err)
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	observeOutcome("complete", nil)
	return payload.text(), nil
}

// CompleteStream starts a streamed completion. The returned Stream must be
// closed by the caller; cancelling ctx also ends it.
func (c *Client) CompleteStream(ctx context.Context, contents []Content) (Stream, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, c.endpoint("streamGenerateContent", url.Values{"alt": {"sse"}}), generateRequest{
		Contents: contents,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	metrics.ModelRequestDuration.WithLabelValues("stream").Observe(time.Since(start).Seconds())
	if err != nil {
		cancel()
		observeOutcome("stream", err)
		return nil, fmt.Errorf("gemini: stream request failed: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		_ = res.Body.Close()
		cancel()
		se := newStatusError(res.StatusCode, res.Header.Get("Content-Type"), buf)
		observeOutcome("stream", se)
		return nil, se
	}

	observeOutcome("stream", nil)
	return newSSEStream(res.Body, cancel), nil
}

func (c *Client) doJSONRequest(req *http.Request) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, newStatusError(res.StatusCode, res.Header.Get("Content-Type"), buf)
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: read response body: %w", err)
	}
	return buf, nil
}

func observeOutcome(operation string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case IsRateLimited(err):
		outcome = "rate_limited"
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
	default:
		outcome = "error"
	}
	metrics.ModelRequestsTotal.WithLabelValues(operation, outcome).Inc()
}
