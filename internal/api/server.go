package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/dunamismax/stylizer/internal/id"
	"github.com/dunamismax/stylizer/internal/pipeline"
	"github.com/dunamismax/stylizer/internal/queue"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	imageField         = "image"
	outputFilename     = "anime_style.png"
	defaultMaxUpload   = 20 << 20
	archiveEnqueueWait = 5 * time.Second
)

type converter interface {
	Process(ctx context.Context, input []byte) (pipeline.Result, error)
	Policy() domain.AlignmentPolicy
}

type archiveEnqueuer interface {
	EnqueueArchive(ctx context.Context, payload queue.ArchiveConversionPayload) (*asynq.TaskInfo, error)
}

type Options struct {
	// Archiver is optional; when nil conversions are not archived.
	Archiver              archiveEnqueuer
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
	AllowedOrigins        []string
	MaxUploadBytes        int64
	Metrics               *Metrics
}

type Server struct {
	logger                zerolog.Logger
	processor             converter
	archiver              archiveEnqueuer
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	allowedOrigins        []string
	maxUploadBytes        int64
	metrics               *Metrics
	tracer                trace.Tracer
	mux                   *http.ServeMux
	background            sync.WaitGroup
}

func NewServer(logger zerolog.Logger, processor converter, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.RateLimitUserIDHeader == "" {
		opts.RateLimitUserIDHeader = "X-User-ID"
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}

	s := &Server{
		logger:                logger.With().Str("component", "api").Logger(),
		processor:             processor,
		archiver:              opts.Archiver,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: opts.RateLimitUserIDHeader,
		allowedOrigins:        opts.AllowedOrigins,
		maxUploadBytes:        opts.MaxUploadBytes,
		metrics:               opts.Metrics,
		tracer:                otel.Tracer("github.com/dunamismax/stylizer/internal/api"),
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.withCORS(s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux))))
}

// Wait blocks until in-flight archive enqueues have finished.
func (s *Server) Wait() {
	s.background.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.handler())
	s.mux.HandleFunc("POST /convert", s.handleConvert)
	s.mux.HandleFunc("OPTIONS /convert", s.handlePreflight)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"policy": s.processor.Policy().String(),
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	conversionID := id.New()
	logger := s.logger.With().Str("conversion_id", conversionID).Logger()

	upload, err := s.readUpload(w, r)
	if err != nil {
		logger.Warn().Err(err).Msg("rejected upload")
		s.metrics.observeConversion(err)
		s.writeError(w, err)
		return
	}
	logger.Info().
		Str("filename", upload.Filename).
		Int("bytes", len(upload.Data)).
		Msg("converting upload")

	result, err := s.processor.Process(r.Context(), upload.Data)
	s.metrics.observeConversion(err)
	record := domain.Conversion{
		ID:          conversionID,
		Filename:    upload.Filename,
		Policy:      s.processor.Policy().String(),
		SourceBytes: len(upload.Data),
		DurationMS:  time.Since(started).Milliseconds(),
		CreatedAt:   started.UTC(),
	}
	if err != nil {
		logger.Error().
			Err(err).
			Str("kind", string(domain.KindOf(err))).
			Dur("elapsed", time.Since(started)).
			Msg("conversion failed")
		record.Status = domain.ConversionStatusFailed
		record.ErrorKind = string(domain.KindOf(err))
		record.ErrorMessage = err.Error()
		s.archive(r.Context(), logger, queue.ArchiveConversionPayload{Conversion: record})
		s.writeError(w, err)
		return
	}

	record.Status = domain.ConversionStatusSucceeded
	record.SourceWidth, record.SourceHeight = result.SourceWidth, result.SourceHeight
	record.Width, record.Height = result.Width, result.Height
	record.OutputBytes = len(result.PNG)

	logger.Info().
		Int("width", result.Width).
		Int("height", result.Height).
		Int("output_bytes", len(result.PNG)).
		Dur("elapsed", time.Since(started)).
		Msg("conversion succeeded")

	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Disposition", `attachment; filename="`+outputFilename+`"`)
	h.Set("Content-Length", strconv.Itoa(len(result.PNG)))
	h.Set("X-Stylizer-Conversion-ID", conversionID)
	h.Set("X-Stylizer-Width", strconv.Itoa(result.Width))
	h.Set("X-Stylizer-Height", strconv.Itoa(result.Height))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.PNG); err != nil {
		logger.Warn().Err(err).Msg("write response failed")
	}

	s.archive(r.Context(), logger, queue.ArchiveConversionPayload{Conversion: record, PNG: result.PNG})
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (domain.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.Upload{}, domain.NewError(domain.KindInputValidation, "File too large", nil)
		case errors.Is(err, http.ErrNotMultipart):
			return domain.Upload{}, domain.NewError(domain.KindInputValidation, "No image uploaded", nil)
		default:
			return domain.Upload{}, domain.NewError(domain.KindInputValidation, "Invalid multipart form", err)
		}
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(imageField)
	if err != nil {
		// net/http files a part with an empty filename under Value.
		if _, ok := r.MultipartForm.Value[imageField]; ok {
			return domain.Upload{}, (domain.Upload{}).ValidateName()
		}
		return domain.Upload{}, domain.NewError(domain.KindInputValidation, "No image uploaded", nil)
	}
	defer file.Close()

	upload := domain.Upload{Filename: header.Filename}
	if err := upload.ValidateName(); err != nil {
		return domain.Upload{}, err
	}
	upload.Data, err = io.ReadAll(file)
	if err != nil {
		return domain.Upload{}, domain.NewError(domain.KindInputValidation, "Could not read upload", err)
	}
	if err := upload.Validate(); err != nil {
		return domain.Upload{}, err
	}
	return upload, nil
}

// archive hands the record to the queue without holding up the response.
// Enqueue failures are logged and never reach the client.
func (s *Server) archive(ctx context.Context, logger zerolog.Logger, payload queue.ArchiveConversionPayload) {
	if s.archiver == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(ctx, archiveEnqueueWait)
		defer cancel()

		info, err := s.archiver.EnqueueArchive(ctx, payload)
		if err != nil {
			s.metrics.archiveEnqueued.WithLabelValues("error").Inc()
			logger.Warn().Err(err).Msg("enqueue archive failed")
			return
		}
		s.metrics.archiveEnqueued.WithLabelValues("ok").Inc()
		if info != nil {
			logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("archive enqueued")
		}
	}()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	message := err.Error()
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindInputValidation {
		message = de.Message
	}
	writeJSON(w, domain.HTTPStatus(err), map[string]string{
		"error": message,
		"kind":  string(domain.KindOf(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
