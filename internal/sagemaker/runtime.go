package sagemaker

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"

	"github.com/agriai/agriai/internal/provider/resilience"
)

// NewRuntime builds a SageMaker runtime client that sends through the
// resilient client, which owns retries and the circuit breaker.
func NewRuntime(cfg aws.Config, httpClient *resilience.Client) *sagemakerruntime.Client {
	return sagemakerruntime.NewFromConfig(cfg, func(o *sagemakerruntime.Options) {
		if httpClient != nil {
			o.HTTPClient = httpClient
		}
		o.Retryer = aws.NopRetryer{}
	})
}
