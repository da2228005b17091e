// Package config provides configuration loading and validation for the
// cleaner daemon. Supports YAML files with environment variable overrides.
package config

// Config holds all configuration for a cleaner worker process.
type Config struct {
	Segment       SegmentConfig       `yaml:"segment"`
	Cleaner       CleanerConfig       `yaml:"cleaner"`
	Replica       ReplicaConfig       `yaml:"replica"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SegmentConfig controls segment and seglet sizing.
type SegmentConfig struct {
	SegmentCapacityBytes uint64 `yaml:"segmentCapacityBytes" env:"CLEANERD_SEGMENT_CAPACITY_BYTES"`
	SegletSizeBytes      uint64 `yaml:"segletSizeBytes" env:"CLEANERD_SEGLET_SIZE_BYTES"`
}

// CleanerConfig carries the nine tunables of the cleaner's external
// interface, mirroring the original LogCleaner's named constants.
type CleanerConfig struct {
	WriteCostThreshold            float64 `yaml:"writeCostThreshold" env:"CLEANERD_WRITE_COST_THRESHOLD"`
	DisableInMemoryCleaning       bool    `yaml:"disableInMemoryCleaning" env:"CLEANERD_DISABLE_IN_MEMORY_CLEANING"`
	NumThreads                    int     `yaml:"numThreads" env:"CLEANERD_NUM_THREADS"`
	MinMemoryUtilization          int     `yaml:"minMemoryUtilization" env:"CLEANERD_MIN_MEMORY_UTILIZATION"`
	MinDiskUtilization            int     `yaml:"minDiskUtilization" env:"CLEANERD_MIN_DISK_UTILIZATION"`
	MaxCleanableMemoryUtilization int     `yaml:"maxCleanableMemoryUtilization" env:"CLEANERD_MAX_CLEANABLE_MEMORY_UTILIZATION"`
	MaxLiveSegmentsPerDiskPass    int     `yaml:"maxLiveSegmentsPerDiskPass" env:"CLEANERD_MAX_LIVE_SEGMENTS_PER_DISK_PASS"`
	SurvivorSegmentsToReserve     int     `yaml:"survivorSegmentsToReserve" env:"CLEANERD_SURVIVOR_SEGMENTS_TO_RESERVE"`
	PollIntervalMicros            int64   `yaml:"pollIntervalMicros" env:"CLEANERD_POLL_INTERVAL_MICROS"`
	Codec                         string  `yaml:"codec" env:"CLEANERD_CODEC"`
}

// ReplicaConfig configures the S3-compatible replica backend.
type ReplicaConfig struct {
	Endpoint  string `yaml:"endpoint" env:"CLEANERD_S3_ENDPOINT"`
	Bucket    string `yaml:"bucket" env:"CLEANERD_S3_BUCKET"`
	Region    string `yaml:"region" env:"CLEANERD_S3_REGION"`
	AccessKey string `yaml:"accessKey" env:"CLEANERD_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secretKey" env:"CLEANERD_S3_SECRET_KEY"`
	KeyPrefix string `yaml:"keyPrefix" env:"CLEANERD_S3_KEY_PREFIX"`
}

// ObservabilityConfig controls logging and metrics endpoints.
type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"CLEANERD_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"CLEANERD_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"CLEANERD_LOG_FORMAT"`
}

// Default returns a Config populated with the defaults from the cleaner's
// external interface table: writeCostThreshold=6.0 (see DESIGN.md's open
// question decision), disableInMemoryCleaning=false, numThreads=1,
// minMemoryUtilization=90, minDiskUtilization=95,
// maxCleanableMemoryUtilization=98, maxLiveSegmentsPerDiskPass=10,
// survivorSegmentsToReserve=15, pollIntervalMicros=10000.
func Default() *Config {
	return &Config{
		Segment: SegmentConfig{
			SegmentCapacityBytes: 64 * 1024 * 1024,
			SegletSizeBytes:      64 * 1024,
		},
		Cleaner: CleanerConfig{
			WriteCostThreshold:            6.0,
			DisableInMemoryCleaning:       false,
			NumThreads:                    1,
			MinMemoryUtilization:          90,
			MinDiskUtilization:            95,
			MaxCleanableMemoryUtilization: 98,
			MaxLiveSegmentsPerDiskPass:    10,
			SurvivorSegmentsToReserve:     15,
			PollIntervalMicros:            10000,
			Codec:                         "none",
		},
		Replica: ReplicaConfig{
			Region: "us-east-1",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}
