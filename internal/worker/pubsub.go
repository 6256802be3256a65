package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai/internal/provider/resilience"
)

// Job types understood by the dispatcher.
const (
	JobWeeklyReport = "weekly_report"
	JobHealthCheck  = "health_check"
)

// JobMessage is the Pub/Sub message payload.
type JobMessage struct {
	JobType string    `json:"job_type"`
	Farms   []FarmJob `json:"farms,omitempty"`
}

// HealthSource reports provider health.
type HealthSource interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// DispatcherConfig holds the dependencies of a Dispatcher.
type DispatcherConfig struct {
	ReportJob *ReportJob
	Health    HealthSource
	Logger    zerolog.Logger
}

// Dispatcher decodes job messages and runs the matching job.
type Dispatcher struct {
	reportJob *ReportJob
	health    HealthSource
	logger    zerolog.Logger
}

// NewDispatcher creates a job dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		reportJob: cfg.ReportJob,
		health:    cfg.Health,
		logger:    cfg.Logger,
	}
}

// Handle runs the job encoded in data and reports whether the message
// should be acknowledged. Unknown job types are acknowledged so they are
// not redelivered.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) bool {
	startTime := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		d.logger.Error().Err(err).Msg("failed to parse message")
		return false
	}

	var err error
	switch msg.JobType {
	case JobWeeklyReport:
		err = d.handleWeeklyReport(ctx, msg)
	case JobHealthCheck:
		err = d.handleHealthCheck()
	default:
		d.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return true
	}

	if err != nil {
		d.logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		return false
	}

	d.logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return true
}

func (d *Dispatcher) handleWeeklyReport(ctx context.Context, msg JobMessage) error {
	if d.reportJob == nil {
		return errors.New("report job not configured")
	}
	if len(msg.Farms) == 0 {
		d.logger.Info().Msg("weekly report message has no farms")
		return nil
	}

	result := d.reportJob.Run(ctx, msg.Farms)

	if result.Failed > result.Successful {
		return fmt.Errorf("too many report failures: %d/%d", result.Failed, result.TotalFarms)
	}
	if result.Skipped > 0 {
		return fmt.Errorf("report job interrupted: %d farms skipped", result.Skipped)
	}
	return nil
}

func (d *Dispatcher) handleHealthCheck() error {
	d.logger.Debug().Msg("running health check")
	if d.health == nil {
		return errors.New("no health source configured")
	}

	var unhealthy []string
	for _, h := range d.health.GetAllHealth() {
		if h.IsUnhealthy() {
			unhealthy = append(unhealthy, h.Name)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("health check failed: circuit open for %v", unhealthy)
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler feeds Pub/Sub messages to a Dispatcher.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx ends.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()
		logger.Debug().Msg("received pubsub message")

		if h.dispatcher.Handle(logger.WithContext(ctx), msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}
