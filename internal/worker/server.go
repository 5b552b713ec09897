package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dunamismax/stylizer/internal/config"
	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/dunamismax/stylizer/internal/queue"
	"github.com/dunamismax/stylizer/internal/store"
	"github.com/dunamismax/stylizer/internal/webhook"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	outputPrefix      = "outputs"
	defaultPresignTTL = 24 * time.Hour
)

type objectStorage interface {
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type Deps struct {
	Storage objectStorage
	Store   store.ConversionStore
	// Webhook and WebhookURL are optional; both must be set for delivery.
	Webhook    webhookSender
	WebhookURL string
	PresignTTL time.Duration
}

// Server consumes archive tasks: successful outputs go to object storage,
// every conversion record goes to the conversion store.
type Server struct {
	logger     zerolog.Logger
	server     *asynq.Server
	storage    objectStorage
	store      store.ConversionStore
	webhook    webhookSender
	webhookURL string
	presignTTL time.Duration
	metrics    *metrics
	tracer     trace.Tracer
}

func NewServer(logger zerolog.Logger, queueCfg config.QueueConfig, workerCfg config.WorkerConfig, deps Deps) (*Server, error) {
	if deps.Storage == nil {
		return nil, errors.New("object storage is required")
	}
	if deps.Store == nil {
		return nil, errors.New("conversion store is required")
	}

	logger = logger.With().Str("component", "worker").Logger()
	s := newServer(logger, deps)
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: max(1, workerCfg.Concurrency),
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			LogLevel: asynq.WarnLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error().
					Err(err).
					Str("task_type", task.Type()).
					Int("retry", retried).
					Int("max_retry", maxRetry).
					Msg("task failed")
			}),
		},
	)
	return s, nil
}

func newServer(logger zerolog.Logger, deps Deps) *Server {
	presignTTL := deps.PresignTTL
	if presignTTL <= 0 {
		presignTTL = defaultPresignTTL
	}
	return &Server{
		logger:     logger,
		storage:    deps.Storage,
		store:      deps.Store,
		webhook:    deps.Webhook,
		webhookURL: deps.WebhookURL,
		presignTTL: presignTTL,
		metrics:    newMetrics(),
		tracer:     otel.Tracer("github.com/dunamismax/stylizer/internal/worker"),
	}
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeArchiveConversion, s.handleArchiveConversion)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleArchiveConversion(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseArchiveConversionPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	return s.archive(ctx, payload)
}

func (s *Server) archive(ctx context.Context, payload queue.ArchiveConversionPayload) (err error) {
	startedAt := time.Now()
	conversion := payload.Conversion
	logger := s.logger.With().Str("conversion_id", conversion.ID).Logger()

	ctx, span := s.tracer.Start(ctx, "worker.archive_conversion", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("conversion.id", conversion.ID),
		attribute.String("conversion.status", conversion.Status),
		attribute.Int("conversion.output_bytes", len(payload.PNG)),
	)
	defer span.End()

	s.metrics.activeTasks.Inc()
	defer func() {
		s.metrics.activeTasks.Dec()
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "archive failed")
		} else {
			span.SetStatus(codes.Ok, "archived")
		}
		s.metrics.tasksTotal.WithLabelValues(conversion.Status, result).Inc()
		s.metrics.taskDuration.WithLabelValues(conversion.Status, result).Observe(time.Since(startedAt).Seconds())
	}()

	if conversion.Status == domain.ConversionStatusSucceeded && len(payload.PNG) > 0 {
		conversion.ObjectKey = fmt.Sprintf("%s/%s.png", outputPrefix, conversion.ID)
		if err := s.writeOutput(ctx, conversion.ObjectKey, payload.PNG); err != nil {
			return err
		}
	}

	if err := s.store.Save(ctx, conversion); err != nil {
		return fmt.Errorf("save conversion %s: %w", conversion.ID, err)
	}

	logger.Info().
		Str("status", conversion.Status).
		Str("object_key", conversion.ObjectKey).
		Msg("conversion archived")

	return s.notify(ctx, conversion)
}

// writeOutput skips the upload when a previous attempt already stored it.
func (s *Server) writeOutput(ctx context.Context, objectKey string, data []byte) error {
	exists, err := s.storage.ObjectExists(ctx, objectKey)
	if err != nil {
		return fmt.Errorf("check output %s: %w", objectKey, err)
	}
	if exists {
		return nil
	}
	if err := s.storage.WriteObject(ctx, objectKey, data, "image/png"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	s.metrics.archivedBytes.Add(float64(len(data)))
	return nil
}

func (s *Server) notify(ctx context.Context, conversion domain.Conversion) error {
	if s.webhook == nil || s.webhookURL == "" {
		return nil
	}

	event := webhook.EventConversionArchived
	body := map[string]any{
		"conversion":  conversion,
		"archived_at": time.Now().UTC(),
	}
	if conversion.Status == domain.ConversionStatusFailed {
		event = webhook.EventConversionFailed
	}
	if conversion.ObjectKey != "" {
		url, err := s.storage.PresignedGetURL(ctx, conversion.ObjectKey, s.presignTTL)
		if err != nil {
			s.logger.Warn().Err(err).Str("conversion_id", conversion.ID).Msg("presign output failed")
		} else {
			body["download_url"] = url
		}
	}

	if err := s.webhook.Send(ctx, s.webhookURL, event, body); err != nil {
		s.metrics.webhookDeliveries.WithLabelValues(event, "error").Inc()
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	s.metrics.webhookDeliveries.WithLabelValues(event, "ok").Inc()
	return nil
}
