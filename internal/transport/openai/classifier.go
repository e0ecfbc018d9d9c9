// Package openai talks to an OpenAI-compatible inference API for asset
// classification and semantic ranking.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/metrics"
)

// Config holds the inference provider settings.
type Config struct {
	APIKey          string
	BaseURL         string
	ClassifierModel string
	RankerModel     string
	ImageBaseURL    string
	Logger          *zap.Logger
}

// supportedMimeTypes lists the image formats the vision model accepts.
// Anything else fails permanently before a request is made.
var supportedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

const classifierPrompt = `You classify interior and architectural imagery for a digital asset library.
Respond with a single JSON object:
{
  "description": "one or two sentences describing the image",
  "tags": ["lowercase", "keywords"],
  "confidence": 0.0,
  "room_type": "kitchen|bathroom|bedroom|living room|exterior|other or empty",
  "style_elements": [], "colors": [], "materials": [], "objects": []
}
Confidence is your certainty in the description, between 0 and 1.`

// Classifier describes asset images via a vision chat completion.
type Classifier struct {
	client       *openai.Client
	model        string
	imageBaseURL string
	logger       *zap.Logger
}

// NewClassifier creates an OpenAI-compatible image classifier.
func NewClassifier(cfg *Config) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Classifier{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.ClassifierModel,
		imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
		logger:       cfg.Logger,
	}
}

// Classify runs one vision completion for the asset and parses the
// structured result. All failures are typed ClassificationErrors.
func (c *Classifier) Classify(ctx context.Context, asset *domain.Asset) (domain.ClassificationResult, error) {
	if !supportedMimeTypes[asset.MimeType] {
		metrics.InferenceErrorsTotal.WithLabelValues(c.model, "classify",
			string(domain.FailureUnsupportedFormat)).Inc()
		return domain.ClassificationResult{}, domain.NewClassificationError(
			domain.FailureUnsupportedFormat, false,
			fmt.Sprintf("mime type %q is not classifiable", asset.MimeType))
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    c.imageBaseURL + "/" + asset.StorageKey,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		cerr := parseAPIError(err)
		metrics.InferenceRequestsTotal.WithLabelValues(c.model, "classify", "error").Inc()
		metrics.InferenceErrorsTotal.WithLabelValues(c.model, "classify", string(cerr.Code)).Inc()
		return domain.ClassificationResult{}, cerr
	}

	metrics.InferenceRequestsTotal.WithLabelValues(c.model, "classify", "success").Inc()
	metrics.InferenceRequestDuration.WithLabelValues(c.model, "classify").Observe(duration.Seconds())

	if len(resp.Choices) == 0 {
		return domain.ClassificationResult{}, domain.NewClassificationError(
			domain.FailureAPIError, true, "empty completion response")
	}

	result, err := parseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.InferenceErrorsTotal.WithLabelValues(c.model, "classify",
			string(domain.FailureAPIError)).Inc()
		return domain.ClassificationResult{}, domain.NewClassificationError(
			domain.FailureAPIError, true, err.Error())
	}
	return result, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Classifier) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseClassification decodes the model's JSON payload.
func parseClassification(content string) (domain.ClassificationResult, error) {
	var payload struct {
		Description   string   `json:"description"`
		Tags          []string `json:"tags"`
		Confidence    float64  `json:"confidence"`
		RoomType      string   `json:"room_type"`
		StyleElements []string `json:"style_elements"`
		Colors        []string `json:"colors"`
		Materials     []string `json:"materials"`
		Objects       []string `json:"objects"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("decode classification payload: %w", err)
	}
	if payload.Description == "" {
		return domain.ClassificationResult{}, errors.New("classification payload has no description")
	}
	if payload.Confidence < 0 {
		payload.Confidence = 0
	}
	if payload.Confidence > 1 {
		payload.Confidence = 1
	}

	return domain.ClassificationResult{
		Description:   payload.Description,
		Tags:          payload.Tags,
		Confidence:    payload.Confidence,
		RoomType:      payload.RoomType,
		StyleElements: payload.StyleElements,
		Colors:        payload.Colors,
		Materials:     payload.Materials,
		Objects:       payload.Objects,
	}, nil
}

// parseAPIError maps a transport failure to a typed classification
// error. Quota exhaustion is retryable, a rejected image is not.
func parseAPIError(err error) *domain.ClassificationError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewClassificationError(domain.FailureAPIError, true, "inference timed out")
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyHTTPError(reqErr.HTTPStatusCode, extractDetail(reqErr.Body, string(reqErr.Body)))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyHTTPError(apiErr.HTTPStatusCode, apiErr.Message)
	}

	return domain.NewClassificationError(domain.FailureAPIError, true, err.Error())
}

func classifyHTTPError(status int, message string) *domain.ClassificationError {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.NewClassificationError(domain.FailureQuotaExceeded, true,
			fmt.Sprintf("inference API error %d: %s", status, message))
	case status == http.StatusBadRequest && mentionsImage(message):
		return domain.NewClassificationError(domain.FailureInvalidImage, false,
			fmt.Sprintf("inference API error %d: %s", status, message))
	default:
		return domain.NewClassificationError(domain.FailureAPIError, true,
			fmt.Sprintf("inference API error %d: %s", status, message))
	}
}

func mentionsImage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "image") || strings.Contains(lower, "decode")
}

// extractDetail extracts the "detail" field from a JSON error body,
// falling back to the raw body.
func extractDetail(body []byte, fallback string) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return fallback
}
