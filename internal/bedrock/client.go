// Package bedrock adapts the Amazon Bedrock runtime to the advisory domain:
// conversational chat, generated crop recommendations, image-based pest
// analysis and weekly report generation.
package bedrock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/provider/resilience"
)

const (
	// DefaultChatModelID serves chat and image analysis.
	DefaultChatModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	// DefaultTextModelID serves recommendation and report generation.
	DefaultTextModelID = "amazon.titan-text-express-v1"
	// DefaultTimeout bounds a single model invocation.
	DefaultTimeout = 20 * time.Second

	providerName = "bedrock"
	tracerName   = "github.com/agriai/agriai/internal/bedrock"
	jsonMIME     = "application/json"
)

// ModelInvoker is the subset of the Bedrock runtime client used here.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// ResponseMode selects how structured results are derived from generated text.
type ResponseMode string

const (
	// ModeParsed decodes the JSON the model was asked to emit.
	ModeParsed ResponseMode = "parsed"
	// ModeReference returns fixed illustrative payloads alongside the raw text.
	ModeReference ResponseMode = "reference"
)

// Config configures a Client.
type Config struct {
	Invoker     ModelInvoker
	ChatModelID string
	TextModelID string
	Timeout     time.Duration
	Mode        ResponseMode
	Logger      zerolog.Logger
	Metrics     *resilience.ProviderMetrics
	Registry    *resilience.Registry
	// Name is the registry key. Defaults to "bedrock".
	Name string
}

// Client calls Bedrock foundation models. It never retries; a failed call is
// reported once and the caller decides on fallbacks.
type Client struct {
	invoker     ModelInvoker
	chatModelID string
	textModelID string
	timeout     time.Duration
	mode        ResponseMode
	logger      zerolog.Logger
	metrics     *resilience.ProviderMetrics
	registry    *resilience.Registry
	name        string
	tracer      trace.Tracer
}

// NewClient creates a Bedrock adapter.
func NewClient(cfg Config) *Client {
	if cfg.ChatModelID == "" {
		cfg.ChatModelID = DefaultChatModelID
	}
	if cfg.TextModelID == "" {
		cfg.TextModelID = DefaultTextModelID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeParsed
	}
	if cfg.Name == "" {
		cfg.Name = providerName
	}
	return &Client{
		invoker:     cfg.Invoker,
		chatModelID: cfg.ChatModelID,
		textModelID: cfg.TextModelID,
		timeout:     cfg.Timeout,
		mode:        cfg.Mode,
		logger:      cfg.Logger.With().Str("provider", cfg.Name).Logger(),
		metrics:     cfg.Metrics,
		registry:    cfg.Registry,
		name:        cfg.Name,
		tracer:      otel.Tracer(tracerName),
	}
}

// Converse answers the latest user turn given the prior exchange and a
// free-form farm context.
func (c *Client) Converse(ctx context.Context, turns []agronomy.Turn, systemContext string) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: conversation has no turns", agronomy.ErrInvalidInput)
	}

	req := claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        chatMaxTokens,
		System:           systemPrompt(systemContext),
		Messages: []claudeMessage{
			{Role: string(agronomy.RoleUser), Content: transcript(turns)},
		},
	}

	var resp claudeResponse
	if err := c.invoke(ctx, "converse", c.chatModelID, req, &resp); err != nil {
		return "", err
	}
	return resp.text()
}

// GenerateRecommendations asks the text model for crop recommendations.
func (c *Client) GenerateRecommendations(ctx context.Context, r agronomy.RecommendationRequest) (*agronomy.GeneratedRecommendations, error) {
	req := titanRequest{
		InputText:            recommendationPrompt(r),
		TextGenerationConfig: recommendationConfig,
	}

	var resp titanResponse
	if err := c.invoke(ctx, "generate_recommendations", c.textModelID, req, &resp); err != nil {
		return nil, err
	}
	narrative, err := resp.text()
	if err != nil {
		return nil, err
	}

	if c.mode == ModeReference {
		return &agronomy.GeneratedRecommendations{
			Candidates: referenceCandidates(narrative),
			Narrative:  narrative,
		}, nil
	}

	candidates, err := parseCandidates(narrative)
	if err != nil {
		c.logger.Warn().Err(err).Str("operation", "generate_recommendations").Msg("generated text did not parse")
		return nil, err
	}
	return &agronomy.GeneratedRecommendations{Candidates: candidates, Narrative: narrative}, nil
}

// AnalyzeImageForPest sends an image to the vision model for pest identification.
func (c *Client) AnalyzeImageForPest(ctx context.Context, image []byte, cropType string) (*agronomy.PestAnalysisResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is empty", agronomy.ErrInvalidInput)
	}

	req := claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        pestMaxTokens,
		Messages: []claudeMessage{{
			Role: string(agronomy.RoleUser),
			Content: []contentBlock{
				{Type: "text", Text: pestPrompt(cropType)},
				{Type: "image", Source: &imageSource{
					Type:      "base64",
					MediaType: imageMediaType(image),
					Data:      base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}

	var resp claudeResponse
	if err := c.invoke(ctx, "analyze_pest", c.chatModelID, req, &resp); err != nil {
		return nil, err
	}
	reply, err := resp.text()
	if err != nil {
		return nil, err
	}

	if c.mode == ModeReference {
		return referencePest(reply), nil
	}
	result, err := parsePest(reply)
	if err != nil {
		c.logger.Warn().Err(err).Str("operation", "analyze_pest").Msg("pest analysis did not parse")
		return nil, err
	}
	return result, nil
}

// GenerateWeeklyReport produces a narrative weekly farm report.
func (c *Client) GenerateWeeklyReport(ctx context.Context, metrics agronomy.FarmMetrics) (string, error) {
	req := titanRequest{
		InputText:            reportPrompt(metrics),
		TextGenerationConfig: reportConfig,
	}

	var resp titanResponse
	if err := c.invoke(ctx, "generate_report", c.textModelID, req, &resp); err != nil {
		return "", err
	}
	return resp.text()
}

// invoke performs one model call under the per-call timeout and decodes the
// response body into out.
func (c *Client) invoke(ctx context.Context, operation, modelID string, payload, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "bedrock."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.name", c.name),
			attribute.String("model.id", modelID),
		),
	)
	start := time.Now()
	defer func() {
		c.metrics.RecordRequest(c.name, operation, time.Since(start), err)
		if c.registry != nil {
			c.registry.Record(c.name, err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, agronomy.Kind(err))
		}
		span.End()
	}()

	if c.invoker == nil {
		return fmt.Errorf("%w: bedrock client is not configured", agronomy.ErrServiceUnavailable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", operation, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.invoker.InvokeModel(callCtx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		ContentType: aws.String(jsonMIME),
		Accept:      aws.String(jsonMIME),
	})
	if err != nil {
		err = classify(callCtx, operation, err)
		c.logFailure(operation, modelID, err)
		return err
	}
	if output == nil || len(output.Body) == 0 {
		return fmt.Errorf("%w: %s returned an empty body", agronomy.ErrMalformedResponse, operation)
	}

	if err := json.Unmarshal(output.Body, out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", agronomy.ErrMalformedResponse, operation, err)
	}
	return nil
}

func (c *Client) logFailure(operation, modelID string, err error) {
	event := c.logger.Error().Err(err).
		Str("operation", operation).
		Str("model_id", modelID).
		Str("kind", agronomy.Kind(err))
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		event = event.Str("error_code", apiErr.ErrorCode())
	}
	event.Msg("bedrock invocation failed")
}

// classify maps an SDK failure onto the advisory error kinds.
func classify(callCtx context.Context, operation string, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", agronomy.ErrTimeout, operation, err)
	}
	return fmt.Errorf("%w: %s: %w", agronomy.ErrServiceUnavailable, operation, err)
}

// imageMediaType sniffs the image format, defaulting to JPEG.
func imageMediaType(image []byte) string {
	mediaType := http.DetectContentType(image)
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	switch mediaType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return mediaType
	default:
		return "image/jpeg"
	}
}
