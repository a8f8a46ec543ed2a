package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intervexa",
		Subsystem: "ai",
		Name:      "content_scoring_duration_seconds",
		Help:      "Duration of AI content scoring requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intervexa",
		Subsystem: "ai",
		Name:      "content_scoring_failures_total",
		Help:      "Number of AI content scoring failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI content scorer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIContentScorer grades answer content against the reference answer
// using the OpenAI chat completion API.
type OpenAIContentScorer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIContentScorer builds the scorer from the provided configuration.
func NewOpenAIContentScorer(cfg OpenAIConfig) (*OpenAIContentScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/intervexa/interview-api/internal/scorer/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIContentScorer{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Dimension returns DimensionContent.
func (s *OpenAIContentScorer) Dimension() Dimension { return DimensionContent }

// Score sends the answer and reference to OpenAI and parses the structured
// response. An empty answer is absent without a request.
func (s *OpenAIContentScorer) Score(parent context.Context, content Content) (Score, error) {
	if strings.TrimSpace(content.Text) == "" {
		return Score{Dimension: DimensionContent}, nil
	}

	ctx, span := s.tracer.Start(parent, "openai.score_content", trace.WithAttributes(
		attribute.String("model", s.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: contentScorerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildContentPrompt(content),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := s.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	aiDuration.WithLabelValues(s.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		aiFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Score{Dimension: DimensionContent}, fmt.Errorf("openai score: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		aiFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Score{Dimension: DimensionContent}, err
	}

	body := strings.TrimSpace(resp.Choices[0].Message.Content)
	score, err := parseContentResponse(body)
	if err != nil {
		aiFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Score{Dimension: DimensionContent}, err
	}

	return score, nil
}

func contentScorerSystemPrompt() string {
	return "You are an automated interview coach evaluating how well a candidate's answer matches a reference answer. " +
		"Respond with a JSON object containing score (0-100), clarity (0-100), strengths (array of short strings), " +
		"improvements (array of short strings), and summary. Judge relevance, completeness, and communication quality."
}

func buildContentPrompt(content Content) string {
	builder := strings.Builder{}
	builder.WriteString("# Candidate Answer\n")
	builder.WriteString(content.Text)
	if content.Reference != "" {
		builder.WriteString("\n\n## Reference Answer\n")
		builder.WriteString(content.Reference)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseContentResponse(body string) (Score, error) {
	type payload struct {
		Score        float64  `json:"score"`
		Clarity      float64  `json:"clarity"`
		Strengths    []string `json:"strengths"`
		Improvements []string `json:"improvements"`
		Summary      string   `json:"summary"`
	}

	var data payload
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return Score{}, fmt.Errorf("parse content score json: %w", err)
	}

	value := clamp(data.Score)

	return Score{
		Dimension: DimensionContent,
		Value:     ptr(value),
		Metrics: map[string]float64{
			"clarity": clamp(data.Clarity),
		},
		Feedback: Feedback{
			Strengths:    data.Strengths,
			Improvements: data.Improvements,
			Summary:      data.Summary,
		},
	}, nil
}
