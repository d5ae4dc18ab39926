// Package openai adapts an OpenAI-compatible chat-completions endpoint to the
// ScoringProvider port. Document text is truncated to the configured
// character budget before anything leaves the process, and every call runs
// under its own timeout, rate limit, and retry/breaker policy.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkuhn/sortmeister/internal/core/domain"
	"github.com/mkuhn/sortmeister/internal/infrastructure/resilience"
)

type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxChars    int
	callTimeout time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	executor    *resilience.Executor
}

type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxChars    int
	CallTimeout time.Duration
	CallsPerMin int
	Executor    *resilience.Executor
}

func New(opts Options) *Client {
	if opts.MaxChars <= 0 {
		opts.MaxChars = 3000
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 20 * time.Second
	}
	if opts.CallsPerMin <= 0 {
		opts.CallsPerMin = 30
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		maxChars:    opts.MaxChars,
		callTimeout: opts.CallTimeout,
		httpClient:  &http.Client{Timeout: opts.CallTimeout + 5*time.Second},
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.CallsPerMin)), opts.CallsPerMin),
		executor:    opts.Executor,
	}
}

func (c *Client) Available() bool {
	return c != nil && c.apiKey != "" && c.baseURL != ""
}

// Score asks the service to pick a destination among the candidate paths.
// An answer outside the candidate set is dropped rather than invented.
func (c *Client) Score(ctx context.Context, features domain.DocumentFeatures, candidates []string) ([]domain.Suggestion, error) {
	if !c.Available() {
		return nil, domain.WrapError(domain.ErrServiceUnavailable, "score", fmt.Errorf("provider not configured"))
	}

	var parsed struct {
		Folder     string  `json:"folder"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	prompt := buildClassifyPrompt(truncateText(features.Text, c.maxChars), features.Keywords, candidates)
	if err := c.completeJSON(ctx, "classify", prompt, &parsed); err != nil {
		return nil, err
	}

	match := matchCandidate(parsed.Folder, candidates)
	if match == "" {
		return nil, nil
	}
	return []domain.Suggestion{{
		Path:       match,
		Confidence: domain.ClampConfidence(parsed.Confidence),
		Source:     domain.SourceExternal,
		Reason:     parsed.Reason,
	}}, nil
}

func (c *Client) SuggestName(ctx context.Context, features domain.DocumentFeatures, destination string) (*domain.NameSuggestion, error) {
	if !c.Available() {
		return nil, domain.WrapError(domain.ErrServiceUnavailable, "suggest name", fmt.Errorf("provider not configured"))
	}

	var parsed struct {
		Filename   string  `json:"filename"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	prompt := buildNamePrompt(truncateText(features.Text, c.maxChars), features, destination)
	if err := c.completeJSON(ctx, "suggest_name", prompt, &parsed); err != nil {
		return nil, err
	}
	if strings.TrimSpace(parsed.Filename) == "" {
		return nil, nil
	}
	return &domain.NameSuggestion{
		Filename:   parsed.Filename,
		Confidence: domain.ClampConfidence(parsed.Confidence),
		Source:     domain.SourceExternal,
		Reason:     parsed.Reason,
	}, nil
}

func (c *Client) completeJSON(ctx context.Context, operation, prompt string, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if err := c.limiter.Wait(callCtx); err != nil {
		return domain.WrapError(domain.ErrServiceUnavailable, operation, err)
	}

	call := func(callCtx context.Context) error {
		raw, err := c.chatCompletion(callCtx, prompt)
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(extractJSONObject(raw)), out); err != nil {
			return fmt.Errorf("parse %s response: %w", operation, err)
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(callCtx, "openai."+operation, call, classifyServiceError)
	} else {
		err = call(callCtx)
	}
	return wrapServiceError(operation, err)
}

func matchCandidate(answer string, candidates []string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ""
	}
	for _, candidate := range candidates {
		if strings.EqualFold(candidate, answer) {
			return candidate
		}
	}
	// Accept a bare folder name when it names exactly one candidate leaf.
	match := ""
	for _, candidate := range candidates {
		segments := domain.SplitPath(candidate)
		if len(segments) > 0 && strings.EqualFold(segments[len(segments)-1], answer) {
			if match != "" {
				return ""
			}
			match = candidate
		}
	}
	return match
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
