package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"weebchat/internal/observability"
)

// ErrMissingCredential marks a classifier that cannot run because no API key
// is configured. The pipeline resolves it to a fail-open verdict.
var ErrMissingCredential = errors.New("moderation classifier credential not configured")

// classifierTimeout bounds the single external call per evaluation. No retry
// is attempted on failure.
const classifierTimeout = 10 * time.Second

// ClassifierResult is the normalized response of the external classifier.
type ClassifierResult struct {
	Flagged        bool
	Categories     map[string]bool
	CategoryScores map[string]float64
}

// Classifier is the external moderation service dependency.
type Classifier interface {
	Classify(ctx context.Context, input string) (*ClassifierResult, error)
}

type moderationRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged        bool               `json:"flagged"`
		Categories     map[string]bool    `json:"categories"`
		CategoryScores map[string]float64 `json:"category_scores"`
	} `json:"results"`
}

// OpenAIClassifier calls an OpenAI-compatible moderations endpoint.
type OpenAIClassifier struct {
	client *resty.Client
	url    string
	model  string
	apiKey string
}

// NewOpenAIClassifier builds a classifier against the given moderations URL.
func NewOpenAIClassifier(url, apiKey, model string) *OpenAIClassifier {
	client := resty.New().
		SetTimeout(classifierTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")

	return &OpenAIClassifier{
		client: client,
		url:    url,
		model:  model,
		apiKey: apiKey,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, input string) (*ClassifierResult, error) {
	if c.apiKey == "" {
		observability.ClassifierRequests.WithLabelValues("missing_credential").Inc()
		return nil, ErrMissingCredential
	}

	span, ctx := observability.NewSpan(ctx, "moderation.classify")
	defer span.End()

	var out moderationResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(moderationRequest{Model: c.model, Input: input}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		observability.ClassifierRequests.WithLabelValues("error").Inc()
		err = fmt.Errorf("moderation request failed: %w", err)
		span.SetError(err)
		return nil, err
	}
	if resp.IsError() {
		observability.ClassifierRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("moderation service returned status %d", resp.StatusCode())
	}
	if len(out.Results) == 0 {
		observability.ClassifierRequests.WithLabelValues("error").Inc()
		return nil, errors.New("moderation service returned no results")
	}

	observability.ClassifierRequests.WithLabelValues("ok").Inc()
	r := out.Results[0]
	return &ClassifierResult{
		Flagged:        r.Flagged,
		Categories:     r.Categories,
		CategoryScores: r.CategoryScores,
	}, nil
}
