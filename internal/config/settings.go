package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys
const (
	EnvMaxConcurrent     = "MAX_CONCURRENT_DOWNLOADS"
	EnvCleanupAfter      = "CLEANUP_AFTER_MINUTES"
	EnvCleanupInterval   = "CLEANUP_INTERVAL_MINUTES"
	EnvTempFolder        = "TEMP_DOWNLOAD_FOLDER"
	EnvPort              = "PORT"
	EnvListenAddr        = "LISTEN_ADDR"
	EnvFetchTimeout      = "FETCH_TIMEOUT"
	EnvInfoTimeout       = "INFO_TIMEOUT"
	EnvDeliveryGrace     = "DELIVERY_GRACE_PERIOD"
	EnvShutdownTimeout   = "SHUTDOWN_TIMEOUT"
	EnvYTDLPPath         = "YTDLP_PATH"
	EnvCookies           = "YOUTUBE_COOKIES"
	EnvNATSURL           = "NATS_URL"
	EnvNATSSubjectPrefix = "NATS_SUBJECT_PREFIX"
	EnvOTLPEndpoint      = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
)

// Default values
const (
	DefaultMaxConcurrent     = 5
	DefaultCleanupAfter      = 10
	DefaultCleanupInterval   = 5
	DefaultTempFolder        = "temp_downloads"
	DefaultListenAddr        = ":5000"
	DefaultFetchTimeout      = 15 * time.Minute
	DefaultInfoTimeout       = 60 * time.Second
	DefaultDeliveryGrace     = 5 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultYTDLPPath         = "yt-dlp"
	DefaultNATSSubjectPrefix = "ytfetch.jobs"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
)

// Limits
const (
	MinConcurrent = 1
	MaxConcurrent = 50
)

// Settings holds the service configuration
type Settings struct {
	ListenAddr             string        `yaml:"listen_addr"`
	MaxConcurrentDownloads int           `yaml:"max_concurrent_downloads"`
	CleanupAfterMinutes    int           `yaml:"cleanup_after_minutes"`
	CleanupIntervalMinutes int           `yaml:"cleanup_interval_minutes"`
	TempDownloadFolder     string        `yaml:"temp_download_folder"`
	FetchTimeout           time.Duration `yaml:"fetch_timeout"`
	InfoTimeout            time.Duration `yaml:"info_timeout"`
	DeliveryGracePeriod    time.Duration `yaml:"delivery_grace_period"`
	ShutdownTimeout        time.Duration `yaml:"shutdown_timeout"`
	YTDLPPath              string        `yaml:"ytdlp_path"`
	NATSURL                string        `yaml:"nats_url"`
	NATSSubjectPrefix      string        `yaml:"nats_subject_prefix"`
	OTLPEndpoint           string        `yaml:"otlp_endpoint"`
	LogLevel               string        `yaml:"log_level"`
	LogFormat              string        `yaml:"log_format"`

	// Cookies is the upstream cookie jar. It is only read from the environment
	// and never written anywhere except the per-invocation temp file.
	Cookies string `yaml:"-"`
}

// Default returns the built-in settings
func Default() Settings {
	return Settings{
		ListenAddr:             DefaultListenAddr,
		MaxConcurrentDownloads: DefaultMaxConcurrent,
		CleanupAfterMinutes:    DefaultCleanupAfter,
		CleanupIntervalMinutes: DefaultCleanupInterval,
		TempDownloadFolder:     DefaultTempFolder,
		FetchTimeout:           DefaultFetchTimeout,
		InfoTimeout:            DefaultInfoTimeout,
		DeliveryGracePeriod:    DefaultDeliveryGrace,
		ShutdownTimeout:        DefaultShutdownTimeout,
		YTDLPPath:              DefaultYTDLPPath,
		NATSSubjectPrefix:      DefaultNATSSubjectPrefix,
		LogLevel:               DefaultLogLevel,
		LogFormat:              DefaultLogFormat,
	}
}

// Load builds settings from defaults, the optional YAML file at path and the
// environment, in that order of precedence.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		if err := s.loadFile(path); err != nil {
			return Settings{}, err
		}
	}
	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	s.Clamp()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (s *Settings) applyEnv() error {
	var errs []error

	s.MaxConcurrentDownloads = getEnvInt(EnvMaxConcurrent, s.MaxConcurrentDownloads, &errs)
	s.CleanupAfterMinutes = getEnvInt(EnvCleanupAfter, s.CleanupAfterMinutes, &errs)
	s.CleanupIntervalMinutes = getEnvInt(EnvCleanupInterval, s.CleanupIntervalMinutes, &errs)
	s.TempDownloadFolder = getEnv(EnvTempFolder, s.TempDownloadFolder)

	if port := strings.TrimSpace(os.Getenv(EnvPort)); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %q", EnvPort, port))
		} else {
			s.ListenAddr = ":" + port
		}
	}
	s.ListenAddr = getEnv(EnvListenAddr, s.ListenAddr)

	s.FetchTimeout = getEnvDuration(EnvFetchTimeout, s.FetchTimeout, &errs)
	s.InfoTimeout = getEnvDuration(EnvInfoTimeout, s.InfoTimeout, &errs)
	s.DeliveryGracePeriod = getEnvDuration(EnvDeliveryGrace, s.DeliveryGracePeriod, &errs)
	s.ShutdownTimeout = getEnvDuration(EnvShutdownTimeout, s.ShutdownTimeout, &errs)

	s.YTDLPPath = getEnv(EnvYTDLPPath, s.YTDLPPath)
	if cookies, ok := os.LookupEnv(EnvCookies); ok {
		s.Cookies = cookies
	}
	s.NATSURL = getEnv(EnvNATSURL, s.NATSURL)
	s.NATSSubjectPrefix = getEnv(EnvNATSSubjectPrefix, s.NATSSubjectPrefix)
	s.OTLPEndpoint = getEnv(EnvOTLPEndpoint, s.OTLPEndpoint)
	s.LogLevel = strings.ToLower(getEnv(EnvLogLevel, s.LogLevel))
	s.LogFormat = strings.ToLower(getEnv(EnvLogFormat, s.LogFormat))

	return errors.Join(errs...)
}

// Clamp brings numeric settings into their supported ranges. The sweep interval
// is never longer than the retention window.
func (s *Settings) Clamp() {
	if s.MaxConcurrentDownloads < MinConcurrent {
		s.MaxConcurrentDownloads = MinConcurrent
	}
	if s.MaxConcurrentDownloads > MaxConcurrent {
		s.MaxConcurrentDownloads = MaxConcurrent
	}
	if s.CleanupIntervalMinutes <= 0 {
		s.CleanupIntervalMinutes = DefaultCleanupInterval
	}
	if s.CleanupAfterMinutes > 0 && s.CleanupIntervalMinutes > s.CleanupAfterMinutes {
		s.CleanupIntervalMinutes = s.CleanupAfterMinutes
	}
}

// Validate reports settings that cannot be used
func (s Settings) Validate() error {
	var errs []error
	if s.CleanupAfterMinutes <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvCleanupAfter))
	}
	if strings.TrimSpace(s.TempDownloadFolder) == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", EnvTempFolder))
	}
	if s.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", EnvListenAddr))
	}
	for name, d := range map[string]time.Duration{
		EnvFetchTimeout:    s.FetchTimeout,
		EnvInfoTimeout:     s.InfoTimeout,
		EnvShutdownTimeout: s.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if s.DeliveryGracePeriod < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", EnvDeliveryGrace))
	}
	switch s.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("%s must be json or text, got %q", EnvLogFormat, s.LogFormat))
	}
	return errors.Join(errs...)
}

// RetentionWindow returns how long artifacts stay cached
func (s Settings) RetentionWindow() time.Duration {
	return time.Duration(s.CleanupAfterMinutes) * time.Minute
}

// SweepInterval returns the retention sweep period
func (s Settings) SweepInterval() time.Duration {
	return time.Duration(s.CleanupIntervalMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", key, value))
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s", "15m") or bare seconds
func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", key, value))
		return fallback
	}
	return d
}
