package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendGCS   = "gcs"
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	StorageBackend string
	AWSRegion      string
	LocalRoot      string

	// Forecast key layout.
	Bucket        string
	ProductMarker string
	FileExtension string
	AssimOffset   int

	// Reanalysis key layout. Each source is read through its own backend.
	ReanalysisBackend    string
	ReanalysisAltBackend string
	ReanalysisBucket     string
	ReanalysisAltBucket  string
	ReanalysisMarker     string
	ReanalysisExtension  string

	// Lazy reader tuning.
	BlockSize      int64
	BlockCacheSize int

	DownloadWorkers int

	KafkaBrokers    []string
	KafkaSinkTopic  string
	PublishFormat   string
	PublishReaches  []int64
	PublishVariant  string
	PublishInterval time.Duration
	AvailabilityLag time.Duration
	BatchSize       int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// defaultBuckets maps each backend to the public NWM forecast mirror it serves.
var defaultBuckets = map[string]string{
	BackendGCS:   "national-water-model",
	BackendS3:    "noaa-nwm-pds",
	BackendLocal: "national-water-model",
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is read first if present;
// variables already set in the environment take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	backend := strings.ToLower(sharedcfg.EnvOrDefault("STORAGE_BACKEND", BackendGCS))
	bucket, ok := defaultBuckets[backend]
	if !ok {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: want gcs, s3 or local", backend)
	}

	reanBackend, err := parseBackendEnv("REANALYSIS_BACKEND", BackendS3)
	if err != nil {
		return nil, err
	}
	reanAltBackend, err := parseBackendEnv("REANALYSIS_ALT_BACKEND", BackendGCS)
	if err != nil {
		return nil, err
	}

	assimOffset, err := parseIntEnv("NWM_ASSIM_OFFSET", 0)
	if err != nil || assimOffset < 0 || assimOffset > 2 {
		return nil, errors.New("invalid NWM_ASSIM_OFFSET: want 0, 1 or 2")
	}

	blockSize, err := parseIntEnv("BLOCK_SIZE", 1<<20)
	if err != nil || blockSize <= 0 {
		return nil, errors.New("invalid BLOCK_SIZE")
	}

	blockCacheSize, err := parseIntEnv("BLOCK_CACHE_SIZE", 64)
	if err != nil || blockCacheSize <= 0 {
		return nil, errors.New("invalid BLOCK_CACHE_SIZE")
	}

	workers, err := parseIntEnv("DOWNLOAD_WORKERS", 2*runtime.NumCPU())
	if err != nil || workers <= 0 {
		return nil, errors.New("invalid DOWNLOAD_WORKERS")
	}

	publishInterval, err := parseDurationEnv("PUBLISH_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}

	availabilityLag, err := parseDurationEnv("AVAILABILITY_LAG", "2h")
	if err != nil {
		return nil, err
	}

	reaches, err := parseReaches(os.Getenv("PUBLISH_REACHES"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StorageBackend: backend,
		AWSRegion:      sharedcfg.EnvOrDefault("AWS_REGION", "us-east-1"),
		LocalRoot:      sharedcfg.EnvOrDefault("LOCAL_ROOT", "./data"),

		Bucket:        sharedcfg.EnvOrDefault("NWM_BUCKET", bucket),
		ProductMarker: sharedcfg.EnvOrDefault("NWM_PRODUCT_MARKER", "channel_rt"),
		FileExtension: sharedcfg.EnvOrDefault("NWM_FILE_EXTENSION", "conus.nc"),
		AssimOffset:   assimOffset,

		ReanalysisBackend:    reanBackend,
		ReanalysisAltBackend: reanAltBackend,
		ReanalysisBucket:     sharedcfg.EnvOrDefault("REANALYSIS_BUCKET", "nwm-archive"),
		ReanalysisAltBucket:  sharedcfg.EnvOrDefault("REANALYSIS_ALT_BUCKET", "national-water-model-v2"),
		ReanalysisMarker:     sharedcfg.EnvOrDefault("REANALYSIS_MARKER", "CHRTOUT"),
		ReanalysisExtension:  sharedcfg.EnvOrDefault("REANALYSIS_EXTENSION", "DOMAIN1.comp"),

		BlockSize:      int64(blockSize),
		BlockCacheSize: blockCacheSize,

		DownloadWorkers: workers,

		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:  sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "nwm-streamflow-forecasts"),
		PublishFormat:   strings.ToLower(sharedcfg.EnvOrDefault("PUBLISH_FORMAT", "json")),
		PublishReaches:  reaches,
		PublishVariant:  sharedcfg.EnvOrDefault("PUBLISH_VARIANT", "short_range"),
		PublishInterval: publishInterval,
		AvailabilityLag: availabilityLag,
		BatchSize:       batchSize,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.Bucket == "" {
		return nil, errors.New("NWM_BUCKET is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.PublishFormat != "json" && cfg.PublishFormat != "msgpack" {
		return nil, fmt.Errorf("invalid PUBLISH_FORMAT %q: want json or msgpack", cfg.PublishFormat)
	}
	switch cfg.PublishVariant {
	case "analysis_assim", "short_range", "medium_range":
	default:
		return nil, fmt.Errorf("invalid PUBLISH_VARIANT %q", cfg.PublishVariant)
	}

	return cfg, nil
}

func parseIntEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func parseBackendEnv(key, def string) (string, error) {
	b := strings.ToLower(sharedcfg.EnvOrDefault(key, def))
	if _, ok := defaultBuckets[b]; !ok {
		return "", fmt.Errorf("invalid %s %q: want gcs, s3 or local", key, b)
	}
	return b, nil
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// parseReaches reads a comma-separated list of reach identifiers.
func parseReaches(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid PUBLISH_REACHES entry %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
