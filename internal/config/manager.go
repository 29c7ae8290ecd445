package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Manager loads configuration from file, environment, and defaults.
type Manager struct {
	config *Config
	viper  *viper.Viper
	logger zerolog.Logger
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: &Config{},
		viper:  viper.New(),
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Load reads configuration from configPath (a directory) when it is set;
// otherwise it searches the current directory, ./config,
// $HOME/.video-pipeline and /etc/video-pipeline. Creates a default file
// under ./config if none is found.
func (m *Manager) Load(configPath string) (*Config, error) {
	m.setDefaults()

	m.viper.SetConfigName("config")
	m.viper.SetConfigType("yaml")

	if configPath != "" {
		m.viper.AddConfigPath(configPath)
	} else {
		m.viper.AddConfigPath(".")
		m.viper.AddConfigPath("./config")
		m.viper.AddConfigPath("$HOME/.video-pipeline")
		m.viper.AddConfigPath("/etc/video-pipeline")
	}

	m.viper.AutomaticEnv()
	m.viper.SetEnvPrefix("PIPELINE")

	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := m.createDefaultConfig(); err != nil {
			m.logger.Warn().Msgf("failed to create default config: %v", err)
		}
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := m.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("error ensuring directories: %w", err)
	}

	m.configureLogger()

	return m.config, nil
}

// GetConfig returns the currently loaded configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// GetLogger returns the logger configured by Load.
func (m *Manager) GetLogger() zerolog.Logger {
	return m.logger
}

func (m *Manager) setDefaults() {
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 8080)
	m.viper.SetDefault("server.read_timeout", 30)
	m.viper.SetDefault("server.write_timeout", 30)
	m.viper.SetDefault("server.dev_mode", false)

	m.viper.SetDefault("database.path", "./data/pipeline.db")
	m.viper.SetDefault("database.max_conns", 10)

	m.viper.SetDefault("log.level", "info")
	m.viper.SetDefault("log.format", "text")
	m.viper.SetDefault("log.output", "stdout")

	m.viper.SetDefault("workspace.root", "./temp")

	m.viper.SetDefault("performance.max_concurrent_downloads", 5)
	m.viper.SetDefault("performance.max_concurrent_conversions", defaultConversionWorkers())
	m.viper.SetDefault("performance.max_concurrent_audio_analyses", defaultAnalysisWorkers())
	m.viper.SetDefault("performance.max_concurrent_keyframe_extractions", defaultConversionWorkers())
	m.viper.SetDefault("performance.max_concurrent_uploads", 5)
	m.viper.SetDefault("performance.max_concurrent_youtube_downloads", 3)
	m.viper.SetDefault("performance.download_timeout_minutes", 30)
	m.viper.SetDefault("performance.recovery_check_interval_minutes", 10)
	m.viper.SetDefault("performance.recovery_stale_threshold_minutes", 10)
	m.viper.SetDefault("performance.recovery_max_attempts", 3)
	m.viper.SetDefault("performance.log_cleanup_interval_hours", 24)
	m.viper.SetDefault("performance.log_retention_days", 30)
	m.viper.SetDefault("performance.temp_file_default_max_age_hours", 24)
	m.viper.SetDefault("performance.temp_file_aggressive_max_age_hours", 12)
	m.viper.SetDefault("performance.temp_file_very_aggressive_max_age_hours", 6)
	m.viper.SetDefault("performance.max_temp_size_bytes", int64(10)*1024*1024*1024)
	m.viper.SetDefault("performance.temp_file_high_usage_threshold", 0.8)
	m.viper.SetDefault("performance.temp_file_very_high_usage_threshold", 0.7)
	m.viper.SetDefault("performance.temp_cleanup_interval_hours", 24)

	m.viper.SetDefault("keyframe.frame_count", 10)
	m.viper.SetDefault("keyframe.quality", 2)

	m.viper.SetDefault("validation.max_file_size_mb", 500)
	m.viper.SetDefault("validation.allowed_content_types", []string{
		"video/mp4", "video/quicktime", "video/webm", "video/x-matroska",
	})

	m.viper.SetDefault("throttle.high_watermark", 0.85)
	m.viper.SetDefault("throttle.max_wait_seconds", 30)

	m.viper.SetDefault("object_store.bucket", "video-pipeline")
	m.viper.SetDefault("object_store.region", "us-east-1")

	m.viper.SetDefault("downloader.user_agent", "Mozilla/5.0 (compatible; video-pipeline/1.0)")
	m.viper.SetDefault("downloader.rate_limit_per_second", 5.0)
	m.viper.SetDefault("downloader.rate_limit_burst", 10)
}

func (m *Manager) createDefaultConfig() error {
	configDir := "./config"
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	configFile := filepath.Join(configDir, "config.yaml")

	defaultConfig := `# video-pipeline configuration

server:
  host: 0.0.0.0
  port: 8080
  read_timeout: 30
  write_timeout: 30
  dev_mode: false

database:
  path: ./data/pipeline.db
  max_conns: 10

log:
  level: info
  format: text
  output: stdout

workspace:
  root: ./temp

performance:
  max_concurrent_downloads: 5
  max_concurrent_conversions: 3
  max_concurrent_audio_analyses: 4
  max_concurrent_keyframe_extractions: 3
  max_concurrent_uploads: 5
  max_concurrent_youtube_downloads: 3
  download_timeout_minutes: 30
  recovery_check_interval_minutes: 10
  recovery_stale_threshold_minutes: 10
  recovery_max_attempts: 3
  log_cleanup_interval_hours: 24
  log_retention_days: 30
  temp_file_default_max_age_hours: 24
  temp_file_aggressive_max_age_hours: 12
  temp_file_very_aggressive_max_age_hours: 6
  max_temp_size_bytes: 10737418240
  temp_file_high_usage_threshold: 0.8
  temp_file_very_high_usage_threshold: 0.7
  temp_cleanup_interval_hours: 24

keyframe:
  frame_count: 10
  quality: 2

validation:
  max_file_size_mb: 500
  allowed_content_types:
    - video/mp4
    - video/quicktime
    - video/webm
    - video/x-matroska

throttle:
  high_watermark: 0.85
  max_wait_seconds: 30

object_store:
  bucket: video-pipeline
  region: us-east-1
  endpoint: ""
  access_key_id: ""
  secret_access_key: ""

downloader:
  proxy_url: ""
  user_agent: "Mozilla/5.0 (compatible; video-pipeline/1.0)"
  rate_limit_per_second: 5.0
  rate_limit_burst: 10
`

	if err := os.WriteFile(configFile, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("error writing default config: %w", err)
	}

	m.logger.Info().Msgf("created default config file at: %s", configFile)
	return nil
}

func (m *Manager) ensureDirectories() error {
	dirs := []string{
		m.config.Workspace.Root,
		filepath.Dir(m.config.Database.Path),
		"./logs",
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}

	return nil
}

func (m *Manager) configureLogger() {
	level, err := zerolog.ParseLevel(m.config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if m.config.Log.Format != "json" {
		m.logger = m.logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	if m.config.Log.Output != "stdout" && m.config.Log.Output != "" {
		file, err := os.OpenFile(m.config.Log.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			m.logger = m.logger.Output(file)
		}
	}
}
