package bedrock

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/agriai/agriai/internal/provider/resilience"
)

// NewRuntime builds a Bedrock runtime client whose HTTP traffic goes through
// the resilient client. SDK retries are disabled so each call is attempted once.
func NewRuntime(cfg aws.Config, httpClient *resilience.Client) *bedrockruntime.Client {
	return bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		if httpClient != nil {
			o.HTTPClient = httpClient
		}
		o.Retryer = aws.NopRetryer{}
	})
}
