package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/careloop/postop-followup/backend/pkg/config"
)

// Client implements the generative model provider on the OpenAI API. It is
// used both for structured extraction and for reply composition, and serves
// the embedding step beneath context retrieval.
type Client struct {
	client     *openai.Client
	chatModel  string
	embedModel string
	limiter    *tokenBucket
}

// NewClient creates a new OpenAI-backed model client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = string(openai.SmallEmbedding3)
	}

	return &Client{
		client:     openai.NewClient(cfg.APIKey),
		chatModel:  chatModel,
		embedModel: embedModel,
		limiter:    newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

// Generate sends a single-turn prompt to the chat completion API and returns
// the raw assistant text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.wait(ctx); err != nil {
		recordModelMetric(ctx, c.chatModel, "generate", 0, err)
		return "", err
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		recordModelMetric(ctx, c.chatModel, "generate", time.Since(start), err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		err := errors.New("openai response missing choices")
		recordModelMetric(ctx, c.chatModel, "generate", time.Since(start), err)
		return "", err
	}

	recordModelMetric(ctx, c.chatModel, "generate", time.Since(start), nil)
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for a text snippet.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot embed empty text")
	}
	if err := c.wait(ctx); err != nil {
		recordModelMetric(ctx, c.embedModel, "embed", 0, err)
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: []string{text},
	})
	if err != nil {
		recordModelMetric(ctx, c.embedModel, "embed", time.Since(start), err)
		return nil, err
	}
	if len(resp.Data) == 0 {
		err := errors.New("openai embedding response missing data")
		recordModelMetric(ctx, c.embedModel, "embed", time.Since(start), err)
		return nil, err
	}

	recordModelMetric(ctx, c.embedModel, "embed", time.Since(start), nil)
	return resp.Data[0].Embedding, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	recordRateLimitWait(ctx, c.chatModel, time.Since(waitStart))
	return nil
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}

	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}
	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

type tokenBucket struct {
	tokens chan struct{}
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

type modelMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var modelMetricsInit = false
var metrics modelMetrics

func ensureModelMetrics() {
	if modelMetricsInit {
		return
	}
	meter := otel.Meter("github.com/careloop/postop-followup/backend/openai")

	requestCount, err := meter.Int64Counter(
		"ai.model.request.count",
		metric.WithDescription("Number of model requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"ai.model.request.duration",
		metric.WithDescription("Model request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"ai.model.request.errors",
		metric.WithDescription("Number of model request errors"),
	)
	if err != nil {
		return
	}
	rateLimitWait, err := meter.Float64Histogram(
		"ai.model.rate_limit.wait",
		metric.WithDescription("Time spent waiting for the model rate limiter in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}

	metrics = modelMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
		rateLimitWait:   rateLimitWait,
	}
	modelMetricsInit = true
}

func recordModelMetric(ctx context.Context, model, operation string, duration time.Duration, err error) {
	ensureModelMetrics()
	if !modelMetricsInit {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
		attribute.String("ai.operation", operation),
	}

	metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		metrics.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	ensureModelMetrics()
	if !modelMetricsInit {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	metrics.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs...))
}
