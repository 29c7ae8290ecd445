// Package config loads and holds pipeline configuration.
package config

import "runtime"

// Config is the fully-resolved application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Workspace   WorkspaceConfig   `mapstructure:"workspace" yaml:"workspace"`
	Performance PerformanceConfig `mapstructure:"performance" yaml:"performance"`
	Keyframe    KeyframeConfig    `mapstructure:"keyframe" yaml:"keyframe"`
	Validation  ValidationConfig  `mapstructure:"validation" yaml:"validation"`
	Throttle    ThrottleConfig    `mapstructure:"throttle" yaml:"throttle"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store" yaml:"object_store"`
	Downloader  DownloaderConfig  `mapstructure:"downloader" yaml:"downloader"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
	DevMode      bool   `mapstructure:"dev_mode" yaml:"dev_mode"`
}

type DatabaseConfig struct {
	Path     string `mapstructure:"path" yaml:"path"`
	MaxConns int    `mapstructure:"max_conns" yaml:"max_conns"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

type WorkspaceConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

type PerformanceConfig struct {
	MaxConcurrentDownloads           int `mapstructure:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`
	MaxConcurrentConversions         int `mapstructure:"max_concurrent_conversions" yaml:"max_concurrent_conversions"`
	MaxConcurrentAudioAnalyses       int `mapstructure:"max_concurrent_audio_analyses" yaml:"max_concurrent_audio_analyses"`
	MaxConcurrentKeyframeExtractions int `mapstructure:"max_concurrent_keyframe_extractions" yaml:"max_concurrent_keyframe_extractions"`
	MaxConcurrentUploads             int `mapstructure:"max_concurrent_uploads" yaml:"max_concurrent_uploads"`
	MaxConcurrentYoutubeDownloads    int `mapstructure:"max_concurrent_youtube_downloads" yaml:"max_concurrent_youtube_downloads"`
	DownloadTimeoutMinutes           int `mapstructure:"download_timeout_minutes" yaml:"download_timeout_minutes"`
	RecoveryCheckIntervalMinutes     int `mapstructure:"recovery_check_interval_minutes" yaml:"recovery_check_interval_minutes"`
	RecoveryStaleThresholdMinutes    int `mapstructure:"recovery_stale_threshold_minutes" yaml:"recovery_stale_threshold_minutes"`
	RecoveryMaxAttempts              int `mapstructure:"recovery_max_attempts" yaml:"recovery_max_attempts"`
	LogCleanupIntervalHours          int `mapstructure:"log_cleanup_interval_hours" yaml:"log_cleanup_interval_hours"`
	LogRetentionDays                 int `mapstructure:"log_retention_days" yaml:"log_retention_days"`
	TempFileDefaultMaxAgeHours       int `mapstructure:"temp_file_default_max_age_hours" yaml:"temp_file_default_max_age_hours"`
	TempFileAggressiveMaxAgeHours    int `mapstructure:"temp_file_aggressive_max_age_hours" yaml:"temp_file_aggressive_max_age_hours"`
	TempFileVeryAggressiveMaxAgeH    int `mapstructure:"temp_file_very_aggressive_max_age_hours" yaml:"temp_file_very_aggressive_max_age_hours"`
	MaxTempSizeBytes                int64 `mapstructure:"max_temp_size_bytes" yaml:"max_temp_size_bytes"`
	TempFileHighUsageThreshold       float64 `mapstructure:"temp_file_high_usage_threshold" yaml:"temp_file_high_usage_threshold"`
	TempFileVeryHighUsageThreshold   float64 `mapstructure:"temp_file_very_high_usage_threshold" yaml:"temp_file_very_high_usage_threshold"`
	TempCleanupIntervalHours         int `mapstructure:"temp_cleanup_interval_hours" yaml:"temp_cleanup_interval_hours"`
}

type KeyframeConfig struct {
	FrameCount int `mapstructure:"frame_count" yaml:"frame_count"`
	Quality    int `mapstructure:"quality" yaml:"quality"`
}

type ValidationConfig struct {
	MaxFileSizeMB       int      `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb"`
	AllowedContentTypes []string `mapstructure:"allowed_content_types" yaml:"allowed_content_types"`
}

type ThrottleConfig struct {
	HighWatermark  float64 `mapstructure:"high_watermark" yaml:"high_watermark"`
	MaxWaitSeconds int     `mapstructure:"max_wait_seconds" yaml:"max_wait_seconds"`
}

type ObjectStoreConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

type DownloaderConfig struct {
	ProxyURL            string  `mapstructure:"proxy_url" yaml:"proxy_url"`
	UserAgent           string  `mapstructure:"user_agent" yaml:"user_agent"`
	RateLimitPerSecond  float64 `mapstructure:"rate_limit_per_second" yaml:"rate_limit_per_second"`
	RateLimitBurst      int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

func defaultConversionWorkers() int {
	if n := runtime.NumCPU() - 1; n > 0 {
		return n
	}
	return 1
}

func defaultAnalysisWorkers() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
