// Package sagemaker adapts SageMaker Runtime endpoints to the advisory
// domain. Typed calls never return errors; they return an Outcome that is
// live, degraded to the demo payload, or failed.
package sagemaker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
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
	// DefaultTimeout bounds a single endpoint invocation.
	DefaultTimeout = 20 * time.Second

	providerName = "sagemaker"
	tracerName   = "github.com/agriai/agriai/internal/sagemaker"
	jsonMIME     = "application/json"
)

// EndpointInvoker is the subset of the SageMaker runtime client used here.
type EndpointInvoker interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// Config configures a Client.
type Config struct {
	Invoker EndpointInvoker
	// Endpoints overrides endpoint names per target. Missing targets use DefaultEndpoints.
	Endpoints map[Target]string
	Timeout   time.Duration
	// DisableDemoFallback turns failures into StatusFailed outcomes instead
	// of demo payloads.
	DisableDemoFallback bool
	Logger              zerolog.Logger
	Metrics             *resilience.ProviderMetrics
	Registry            *resilience.Registry
	Name                string
}

// Client invokes the managed inference endpoints.
type Client struct {
	invoker      EndpointInvoker
	endpoints    map[Target]string
	timeout      time.Duration
	demoFallback bool
	logger       zerolog.Logger
	metrics      *resilience.ProviderMetrics
	registry     *resilience.Registry
	name         string
	tracer       trace.Tracer
}

// NewClient creates a SageMaker adapter.
func NewClient(cfg Config) *Client {
	endpoints := DefaultEndpoints()
	for target, name := range cfg.Endpoints {
		if name != "" {
			endpoints[target] = name
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Name == "" {
		cfg.Name = providerName
	}
	return &Client{
		invoker:      cfg.Invoker,
		endpoints:    endpoints,
		timeout:      cfg.Timeout,
		demoFallback: !cfg.DisableDemoFallback,
		logger:       cfg.Logger.With().Str("provider", cfg.Name).Logger(),
		metrics:      cfg.Metrics,
		registry:     cfg.Registry,
		name:         cfg.Name,
		tracer:       otel.Tracer(tracerName),
	}
}

// Endpoint returns the endpoint name configured for target.
func (c *Client) Endpoint(target Target) string {
	return c.endpoints[target]
}

type invocation struct {
	Instances []any `json:"instances"`
}

type predictions struct {
	Predictions []json.RawMessage `json:"predictions"`
}

// InvokeNamedEndpoint sends one feature record to the target's endpoint and
// returns the first prediction as raw JSON.
func (c *Client) InvokeNamedEndpoint(ctx context.Context, target Target, features any) (raw json.RawMessage, err error) {
	endpoint, ok := c.endpoints[target]
	if !ok {
		return nil, fmt.Errorf("%w: unknown inference target %q", agronomy.ErrInvalidInput, target)
	}

	ctx, span := c.tracer.Start(ctx, "sagemaker.invoke",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.name", c.name),
			attribute.String("inference.target", string(target)),
			attribute.String("inference.endpoint", endpoint),
		),
	)
	start := time.Now()
	defer func() {
		c.metrics.RecordRequest(c.name, string(target), time.Since(start), err)
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
		return nil, fmt.Errorf("%w: sagemaker client is not configured", agronomy.ErrServiceUnavailable)
	}

	body, err := json.Marshal(invocation{Instances: []any{features}})
	if err != nil {
		return nil, fmt.Errorf("encoding %s features: %w", target, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.invoker.InvokeEndpoint(callCtx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(endpoint),
		Body:         body,
		ContentType:  aws.String(jsonMIME),
		Accept:       aws.String(jsonMIME),
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %w", agronomy.ErrTimeout, endpoint, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", agronomy.ErrServiceUnavailable, endpoint, err)
	}
	if output == nil {
		return nil, fmt.Errorf("%w: %s returned no output", agronomy.ErrMalformedResponse, endpoint)
	}

	var resp predictions
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding %s response: %w", agronomy.ErrMalformedResponse, endpoint, err)
	}
	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("%w: %s returned no predictions", agronomy.ErrMalformedResponse, endpoint)
	}
	return resp.Predictions[0], nil
}

// RecommendCrops invokes the crop recommendation target.
func (c *Client) RecommendCrops(ctx context.Context, features CropFeatures) Outcome[CropRecommendationPrediction] {
	return invokeTyped(ctx, c, TargetCropRecommendation, features, DemoCropRecommendation,
		func(raw json.RawMessage) (CropRecommendationPrediction, error) {
			var p CropRecommendationPrediction
			if err := json.Unmarshal(raw, &p); err != nil {
				return p, err
			}
			if len(p.RecommendedCrops) == 0 {
				return p, errors.New("prediction has no recommended crops")
			}
			return p, nil
		})
}

// DetectPests invokes the pest detection target with a base64 JPEG payload.
func (c *Client) DetectPests(ctx context.Context, image []byte) Outcome[PestDetectionPrediction] {
	if len(image) == 0 {
		return Outcome[PestDetectionPrediction]{
			Target: TargetPestDetection,
			Status: StatusFailed,
			Reason: fmt.Errorf("%w: image is empty", agronomy.ErrInvalidInput),
		}
	}
	features := pestFeatures{
		ImageData:   base64.StdEncoding.EncodeToString(image),
		ImageFormat: "jpeg",
	}
	return invokeTyped(ctx, c, TargetPestDetection, features, DemoPestDetection,
		func(raw json.RawMessage) (PestDetectionPrediction, error) {
			var p PestDetectionPrediction
			err := json.Unmarshal(raw, &p)
			return p, err
		})
}

// PredictYield invokes the yield prediction target.
func (c *Client) PredictYield(ctx context.Context, features agronomy.YieldFeatures) Outcome[agronomy.YieldPrediction] {
	return invokeTyped(ctx, c, TargetYieldPrediction, features, DemoYieldPrediction,
		func(raw json.RawMessage) (agronomy.YieldPrediction, error) {
			var p yieldPrediction
			if err := json.Unmarshal(raw, &p); err != nil {
				return agronomy.YieldPrediction{}, err
			}
			return p.toDomain(), nil
		})
}

func invokeTyped[T any](
	ctx context.Context,
	c *Client,
	target Target,
	features any,
	demo func() T,
	decode func(json.RawMessage) (T, error),
) Outcome[T] {
	raw, err := c.InvokeNamedEndpoint(ctx, target, features)
	if err == nil {
		value, decodeErr := decode(raw)
		if decodeErr == nil {
			return Outcome[T]{Target: target, Status: StatusLive, Value: value}
		}
		err = fmt.Errorf("%w: %s prediction: %w", agronomy.ErrMalformedResponse, target, decodeErr)
	}

	c.reportFailure(target, err)
	if !c.demoFallback {
		return Outcome[T]{Target: target, Status: StatusFailed, Reason: err}
	}
	return Outcome[T]{Target: target, Status: StatusDegraded, Value: demo(), Reason: err}
}

// reportFailure logs a failed call and counts the demo substitution when one
// is made.
func (c *Client) reportFailure(target Target, err error) {
	var event *zerolog.Event
	if c.demoFallback {
		event = c.logger.Warn()
	} else {
		event = c.logger.Error()
	}
	event = event.Err(err).
		Str("target", string(target)).
		Str("endpoint", c.endpoints[target]).
		Str("kind", agronomy.Kind(err))
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		event = event.Str("error_code", apiErr.ErrorCode())
	}

	if !c.demoFallback {
		event.Msg("inference call failed")
		return
	}
	event.Msg("inference call failed, substituting demo payload")
	c.metrics.RecordFallback(c.name, string(target), agronomy.Kind(err))
}
