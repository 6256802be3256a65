package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/sagemaker"
)

// YieldResult is a yield prediction tagged with how it was produced.
type YieldResult struct {
	Prediction agronomy.YieldPrediction `json:"prediction"`
	Status     sagemaker.Status         `json:"status"`
	Reason     string                   `json:"reason,omitempty"`
}

// PredictYield passes the features to the inference yield target.
func (s *Service) PredictYield(ctx context.Context, features agronomy.YieldFeatures) (*YieldResult, error) {
	if strings.TrimSpace(features.CropType) == "" {
		return nil, fmt.Errorf("%w: crop type is required", agronomy.ErrInvalidInput)
	}
	if features.AreaHectares < 0 {
		return nil, fmt.Errorf("%w: negative area", agronomy.ErrInvalidInput)
	}

	if s.flags.ForceDemoMode(ctx) || s.inference == nil {
		return &YieldResult{
			Prediction: sagemaker.DemoYieldPrediction(),
			Status:     sagemaker.StatusDegraded,
			Reason:     reasonDemoMode,
		}, nil
	}

	out := s.inference.PredictYield(ctx, features)
	return &YieldResult{Prediction: out.Value, Status: out.Status, Reason: out.ReasonText()}, nil
}
