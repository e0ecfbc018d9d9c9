package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/metrics"
)

const rankerPrompt = `You score how well asset descriptions match a search query.
The user sends {"query": "...", "candidates": [{"index": 0, "description": "..."}]}.
Respond with a single JSON object {"scores": [{"index": 0, "score": 0.0}]}.
Score every candidate between 0 (irrelevant) and 1 (perfect match).`

// Ranker scores candidate descriptions against a query in one bulk
// completion call.
type Ranker struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewRanker creates an OpenAI-compatible semantic ranker.
func NewRanker(cfg *Config) *Ranker {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Ranker{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.RankerModel,
		logger: cfg.Logger,
	}
}

// Rank submits the query with all candidate descriptions and returns
// the parsed scores. Out-of-range indexes are discarded, scores are
// clamped to [0, 1].
func (r *Ranker) Rank(ctx context.Context, query string, descriptions []string) ([]domain.RankedScore, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}

	type candidate struct {
		Index       int    `json:"index"`
		Description string `json:"description"`
	}
	input := struct {
		Query      string      `json:"query"`
		Candidates []candidate `json:"candidates"`
	}{Query: query}
	for i, d := range descriptions {
		input.Candidates = append(input.Candidates, candidate{Index: i, Description: d})
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode ranking request: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rankerPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(body)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		cerr := parseAPIError(err)
		metrics.InferenceRequestsTotal.WithLabelValues(r.model, "rank", "error").Inc()
		metrics.InferenceErrorsTotal.WithLabelValues(r.model, "rank", string(cerr.Code)).Inc()
		return nil, cerr
	}

	metrics.InferenceRequestsTotal.WithLabelValues(r.model, "rank", "success").Inc()
	metrics.InferenceRequestDuration.WithLabelValues(r.model, "rank").Observe(duration.Seconds())

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty ranking response: %w", domain.ErrInferenceFailed)
	}

	return parseScores(resp.Choices[0].Message.Content, len(descriptions))
}

func parseScores(content string, candidates int) ([]domain.RankedScore, error) {
	var payload struct {
		Scores []struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		} `json:"scores"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("decode ranking payload: %w", domain.ErrInferenceFailed)
	}

	scores := make([]domain.RankedScore, 0, len(payload.Scores))
	for _, s := range payload.Scores {
		if s.Index < 0 || s.Index >= candidates {
			continue
		}
		if s.Score < 0 {
			s.Score = 0
		}
		if s.Score > 1 {
			s.Score = 1
		}
		scores = append(scores, domain.RankedScore{Index: s.Index, Score: s.Score})
	}
	return scores, nil
}
