package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/reports"
)

// Reporter generates and stores a farm's weekly report.
type Reporter interface {
	Generate(ctx context.Context, farmID string, metrics agronomy.FarmMetrics) (*reports.Report, error)
}

// ReportJob generates weekly reports for a batch of farms.
type ReportJob struct {
	config   ReportJobConfig
	logger   zerolog.Logger
	reporter Reporter

	metrics *ReportMetrics
}

// ReportMetrics tracks report job statistics.
type ReportMetrics struct {
	mu sync.RWMutex

	TotalRuns         int64
	SuccessfulReports int64
	FailedReports     int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// ReportJobOptions holds the dependencies of a ReportJob.
type ReportJobOptions struct {
	Config   ReportJobConfig
	Logger   zerolog.Logger
	Reporter Reporter
}

// NewReportJob creates a new report job processor.
func NewReportJob(opts ReportJobOptions) *ReportJob {
	return &ReportJob{
		config:   opts.Config.withDefaults(),
		logger:   opts.Logger,
		reporter: opts.Reporter,
		metrics:  &ReportMetrics{},
	}
}

// Config returns the effective configuration, defaults applied.
func (j *ReportJob) Config() ReportJobConfig {
	return j.config
}

// ReportResult contains the result of one job run.
type ReportResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalFarms int
	Successful int
	Failed     int
	// Skipped counts farms never started because the context ended.
	Skipped int
	Errors  []ReportError
}

// ReportError records one farm's failure.
type ReportError struct {
	FarmID string
	Kind   string
	Error  string
}

type farmResult struct {
	farmID  string
	success bool
	err     *ReportError
}

// Run generates reports for farms using a fixed pool of workers.
func (j *ReportJob) Run(ctx context.Context, farms []FarmJob) *ReportResult {
	startTime := time.Now()
	result := &ReportResult{
		StartTime:  startTime,
		TotalFarms: len(farms),
	}

	j.logger.Info().
		Int("total_farms", result.TotalFarms).
		Int("concurrency", j.config.Concurrency).
		Msg("starting weekly report job")

	farmsChan := make(chan FarmJob, len(farms))
	resultsChan := make(chan farmResult, len(farms))

	var g errgroup.Group
	for i := 0; i < j.config.Concurrency; i++ {
		g.Go(func() error {
			j.reportWorker(ctx, farmsChan, resultsChan)
			return nil
		})
	}

	for _, f := range farms {
		farmsChan <- f
	}
	close(farmsChan)

	go func() {
		_ = g.Wait()
		close(resultsChan)
	}()

	for fr := range resultsChan {
		if fr.success {
			result.Successful++
			continue
		}
		result.Failed++
		if fr.err != nil {
			result.Errors = append(result.Errors, *fr.err)
		}
	}

	result.Skipped = result.TotalFarms - result.Successful - result.Failed
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("weekly report job completed")

	return result
}

func (j *ReportJob) reportWorker(ctx context.Context, farms <-chan FarmJob, results chan<- farmResult) {
	for farm := range farms {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.reportFarm(ctx, farm)
		}
	}
}

func (j *ReportJob) reportFarm(ctx context.Context, farm FarmJob) farmResult {
	if j.reporter == nil {
		err := fmt.Errorf("%w: no report generator", agronomy.ErrServiceUnavailable)
		return farmResult{farmID: farm.FarmID, err: &ReportError{FarmID: farm.FarmID, Kind: agronomy.Kind(err), Error: err.Error()}}
	}

	farmCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if _, err := j.reporter.Generate(farmCtx, farm.FarmID, farm.Metrics); err != nil {
		j.logger.Warn().Err(err).Str("farm_id", farm.FarmID).Msg("farm report failed")
		return farmResult{
			farmID: farm.FarmID,
			err:    &ReportError{FarmID: farm.FarmID, Kind: agronomy.Kind(err), Error: err.Error()},
		}
	}
	return farmResult{farmID: farm.FarmID, success: true}
}

func (j *ReportJob) updateMetrics(result *ReportResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulReports += int64(result.Successful)
	j.metrics.FailedReports += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *ReportJob) GetMetrics() ReportMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return ReportMetrics{
		TotalRuns:         j.metrics.TotalRuns,
		SuccessfulReports: j.metrics.SuccessfulReports,
		FailedReports:     j.metrics.FailedReports,
		LastRunAt:         j.metrics.LastRunAt,
		LastRunDuration:   j.metrics.LastRunDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *ReportJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":         m.TotalRuns,
		"successful_reports": m.SuccessfulReports,
		"failed_reports":     m.FailedReports,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
		"total_duration":     m.TotalDuration.String(),
	}
}
