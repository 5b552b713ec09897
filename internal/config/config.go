package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
)

type Config struct {
	API       APIConfig
	Model     ModelConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Tracing   TracingConfig
	RateLimit RateLimitConfig
	Archive   ArchiveConfig
	LogLevel  string
}

type APIConfig struct {
	Addr           string
	MaxUploadBytes int64
	AllowedOrigins []string
}

type ModelConfig struct {
	ResourceDir       string
	File              string
	Alignment         string
	Resampler         string
	SharedLibraryPath string
	IntraOpThreads    int
	// MaxPixels caps width*height of accepted uploads; zero disables it.
	MaxPixels int64
	// Identity skips the ONNX runtime and echoes the input back.
	Identity bool
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency int
	MetricsAddr string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type DatabaseConfig struct {
	DSN string
}

type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

type RateLimitConfig struct {
	Enabled      bool
	Capacity     int
	Window       time.Duration
	UserIDHeader string
}

type ArchiveConfig struct {
	Enabled       bool
	WebhookURL    string
	WebhookSecret string
}

// Load reads configuration from STYLIZER_CONFIG (if set) and the environment.
func Load() (Config, error) {
	v := New()
	if path := v.GetString("STYLIZER_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	return FromViper(v), nil
}

// New returns a viper instance bound to the environment with every default
// registered.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("STYLIZER_API_ADDR", ":8602")
	v.SetDefault("STYLIZER_MAX_UPLOAD_BYTES", 20<<20)
	v.SetDefault("STYLIZER_ALLOWED_ORIGINS", "http://localhost:4200")
	v.SetDefault("STYLIZER_LOG_LEVEL", "info")

	v.SetDefault("MODEL_RESOURCE_DIR", ".")
	v.SetDefault("MODEL_FILE", "AnimeGANv3_PortraitSketch_25.onnx")
	v.SetDefault("MODEL_ALIGNMENT", "standard")
	v.SetDefault("MODEL_RESAMPLER", "bilinear")
	v.SetDefault("ONNXRUNTIME_SHARED_LIBRARY_PATH", "")
	v.SetDefault("MODEL_INTRA_OP_THREADS", 0)
	v.SetDefault("MODEL_IDENTITY", false)
	v.SetDefault("MODEL_MAX_PIXELS", int64(1)<<30)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ASYNC_QUEUE", "archive")

	v.SetDefault("WORKER_CONCURRENCY", max(2, runtime.NumCPU()))
	v.SetDefault("WORKER_METRICS_ADDR", ":9102")

	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET", "stylizer-outputs")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("POSTGRES_DSN", "")

	v.SetDefault("TRACE_EXPORTER", "none")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", true)

	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_CAPACITY", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	v.SetDefault("RATE_LIMIT_USER_ID_HEADER", "X-User-ID")

	v.SetDefault("ARCHIVE_ENABLED", false)
	v.SetDefault("ARCHIVE_WEBHOOK_URL", "")
	v.SetDefault("ARCHIVE_WEBHOOK_SECRET", "")
	return v
}

func FromViper(v *viper.Viper) Config {
	return Config{
		API: APIConfig{
			Addr:           v.GetString("STYLIZER_API_ADDR"),
			MaxUploadBytes: v.GetInt64("STYLIZER_MAX_UPLOAD_BYTES"),
			AllowedOrigins: splitList(v.GetString("STYLIZER_ALLOWED_ORIGINS")),
		},
		Model: ModelConfig{
			ResourceDir:       v.GetString("MODEL_RESOURCE_DIR"),
			File:              v.GetString("MODEL_FILE"),
			Alignment:         v.GetString("MODEL_ALIGNMENT"),
			Resampler:         v.GetString("MODEL_RESAMPLER"),
			SharedLibraryPath: v.GetString("ONNXRUNTIME_SHARED_LIBRARY_PATH"),
			IntraOpThreads:    v.GetInt("MODEL_INTRA_OP_THREADS"),
			MaxPixels:         v.GetInt64("MODEL_MAX_PIXELS"),
			Identity:          v.GetBool("MODEL_IDENTITY"),
		},
		Queue: QueueConfig{
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			Name:          v.GetString("ASYNC_QUEUE"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
			MetricsAddr: v.GetString("WORKER_METRICS_ADDR"),
		},
		Storage: StorageConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("POSTGRES_DSN"),
		},
		Tracing: TracingConfig{
			Exporter:     v.GetString("TRACE_EXPORTER"),
			OTLPEndpoint: v.GetString("OTLP_ENDPOINT"),
			OTLPInsecure: v.GetBool("OTLP_INSECURE"),
		},
		RateLimit: RateLimitConfig{
			Enabled:      v.GetBool("RATE_LIMIT_ENABLED"),
			Capacity:     v.GetInt("RATE_LIMIT_CAPACITY"),
			Window:       v.GetDuration("RATE_LIMIT_WINDOW"),
			UserIDHeader: v.GetString("RATE_LIMIT_USER_ID_HEADER"),
		},
		Archive: ArchiveConfig{
			Enabled:       v.GetBool("ARCHIVE_ENABLED"),
			WebhookURL:    v.GetString("ARCHIVE_WEBHOOK_URL"),
			WebhookSecret: v.GetString("ARCHIVE_WEBHOOK_SECRET"),
		},
		LogLevel: v.GetString("STYLIZER_LOG_LEVEL"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
