package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultTimeout   = 30 * time.Second
	defaultBaseDelay = 500 * time.Millisecond
	maxErrorBody     = 512
)

// HTTPConfig configures an OpenAI-compatible chat-completions endpoint.
type HTTPConfig struct {
	URL        string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// RPS caps outgoing requests per second; 0 disables limiting.
	RPS float64
	// BaseDelay is the first backoff step; it doubles per retry.
	BaseDelay time.Duration
}

// HTTPGenerator calls a remote model and expects a JSON object with text,
// macros, and explanation in the first choice. A 202 reply means the
// backend accepted the job asynchronously.
type HTTPGenerator struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewHTTPGenerator builds a client with defaults applied.
func NewHTTPGenerator(cfg HTTPConfig) *HTTPGenerator {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	g := &HTTPGenerator{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		sleep: sleepCtx,
	}
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return g
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type adaptationPayload struct {
	Text        string         `json:"text"`
	Macros      *domain.Macros `json:"macros"`
	Explanation string         `json:"explanation"`
}

// Generate sends the request, retrying network and rate-limit failures with
// exponential backoff and jitter up to MaxRetries times.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(g.cfg.URL) == "" || strings.TrimSpace(g.cfg.APIKey) == "" {
		return Result{}, newError(KindConfiguration, "generator URL or API key not set")
	}
	body, err := json.Marshal(g.buildRequest(req))
	if err != nil {
		return Result{}, newError(KindConfiguration, "marshal request: %w", err)
	}

	var last *Error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, g.backoff(attempt)); err != nil {
				return Result{}, &Error{Kind: KindNetwork, Err: err}
			}
		}
		res, gerr := g.once(ctx, body)
		if gerr == nil {
			return res, nil
		}
		last = gerr
		if !gerr.Retryable() || ctx.Err() != nil {
			break
		}
	}
	return Result{}, last
}

func (g *HTTPGenerator) buildRequest(req Request) chatRequest {
	system := req.SystemContext
	if system == "" {
		system = "You adapt recipes to nutrition goals. Reply with a JSON object " +
			`{"text": string, "macros": {"kcal","protein","carbs","fat"}, "explanation": string}. ` +
			"Macros are per serving with at most two decimals."
	}
	recipe, _ := json.Marshal(struct {
		Title  string        `json:"title"`
		Text   string        `json:"text"`
		Macros domain.Macros `json:"macros"`
	}{req.Recipe.Title, req.Recipe.Text, req.Recipe.Macros})

	var user strings.Builder
	fmt.Fprintf(&user, "Goal: %s\n", req.Goal)
	if req.Preferences != "" {
		fmt.Fprintf(&user, "Preferences: %s\n", req.Preferences)
	}
	if req.Notes != "" {
		fmt.Fprintf(&user, "Notes: %s\n", req.Notes)
	}
	fmt.Fprintf(&user, "Recipe: %s", recipe)

	return chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user.String()},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
}

func (g *HTTPGenerator) once(ctx context.Context, body []byte) (Result, *Error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return Result{}, &Error{Kind: KindRateLimit, Err: err}
		}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, newError(KindConfiguration, "build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusAccepted:
		return Result{Status: StatusPending}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, newError(KindRateLimit, "status %d: %s", resp.StatusCode, readSnippet(resp.Body))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{}, newError(KindConfiguration, "status %d: %s", resp.StatusCode, readSnippet(resp.Body))
	case resp.StatusCode >= 500:
		return Result{}, newError(KindNetwork, "status %d: %s", resp.StatusCode, readSnippet(resp.Body))
	case resp.StatusCode != http.StatusOK:
		return Result{}, newError(KindMalformedResponse, "unexpected status %d: %s", resp.StatusCode, readSnippet(resp.Body))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Result{}, newError(KindMalformedResponse, "decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return Result{}, newError(KindMalformedResponse, "no choices in response")
	}
	return parsePayload(cr.Choices[0].Message.Content)
}

func parsePayload(content string) (Result, *Error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var p adaptationPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &p); err != nil {
		return Result{}, newError(KindMalformedResponse, "parse adaptation JSON: %w", err)
	}
	if strings.TrimSpace(p.Text) == "" || p.Macros == nil {
		return Result{}, newError(KindMalformedResponse, "adaptation missing text or macros")
	}
	macros := p.Macros.Rounded()
	if err := macros.Validate(); err != nil {
		return Result{}, &Error{Kind: KindMalformedResponse, Err: err}
	}
	return Result{
		Status:      StatusCompleted,
		Text:        p.Text,
		Macros:      macros,
		Explanation: p.Explanation,
	}, nil
}

// backoff returns BaseDelay * 2^(attempt-1) plus up to 50% jitter.
func (g *HTTPGenerator) backoff(attempt int) time.Duration {
	d := g.cfg.BaseDelay << (attempt - 1)
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Generator = (*HTTPGenerator)(nil)
var _ Generator = (*RuleGenerator)(nil)
