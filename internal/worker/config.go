// Package worker runs background report and health jobs for AgriAI.
package worker

import (
	"time"

	"github.com/agriai/agriai/internal/agronomy"
)

// FarmJob is one farm's input to the weekly report job.
type FarmJob struct {
	FarmID  string               `json:"farm_id"`
	Metrics agronomy.FarmMetrics `json:"metrics"`
}

// ReportJobConfig holds configuration for the weekly report job.
type ReportJobConfig struct {
	// Concurrency is the number of farms processed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds report generation for a single farm.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultReportJobConfig returns the default report job configuration.
func DefaultReportJobConfig() ReportJobConfig {
	return ReportJobConfig{
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

func (c ReportJobConfig) withDefaults() ReportJobConfig {
	def := DefaultReportJobConfig()
	if c.Concurrency < 1 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
