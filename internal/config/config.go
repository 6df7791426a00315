// Package config loads the labelscan configuration from files, environment
// variables and command-line flags.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/batch"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/translate"
)

// Config represents the complete configuration for the labelscan application.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Recognizer  RecognizerConfig  `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	Translation TranslationConfig `mapstructure:"translation" yaml:"translation" json:"translation"`
	Conditioner ConditionerConfig `mapstructure:"conditioner" yaml:"conditioner" json:"conditioner"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output" json:"output"`
	Batch       BatchConfig       `mapstructure:"batch" yaml:"batch" json:"batch"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	Bot         BotConfig         `mapstructure:"bot" yaml:"bot" json:"bot"`
}

// RecognizerConfig selects the script recognition engine.
type RecognizerConfig struct {
	Engine         string  `mapstructure:"engine" yaml:"engine" json:"engine"`
	ModelsDir      string  `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	OnnxLibPath    string  `mapstructure:"onnx_lib_path" yaml:"onnx_lib_path" json:"onnx_lib_path"`
	NumThreads     int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	MinConfidence  float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	TessdataPrefix string  `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix" json:"tessdata_prefix"`
}

// TranslationConfig configures the Ollama translation server.
type TranslationConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Model        string        `mapstructure:"model" yaml:"model" json:"model"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout" json:"probe_timeout"`
}

// ConditionerConfig contains image conditioning settings.
type ConditionerConfig struct {
	// DebugDir receives the conditioned image of every scan when set.
	DebugDir string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxConnections  int             `mapstructure:"max_connections" yaml:"max_connections" json:"max_connections"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig configures per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// BotConfig configures the Telegram front-end.
type BotConfig struct {
	Token       string `mapstructure:"token" yaml:"token" json:"-"`
	APIEndpoint string `mapstructure:"api_endpoint" yaml:"api_endpoint" json:"api_endpoint"`
	PollTimeout int    `mapstructure:"poll_timeout" yaml:"poll_timeout" json:"poll_timeout"`
	Debug       bool   `mapstructure:"debug" yaml:"debug" json:"debug"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	tc := translate.DefaultConfig()
	return Config{
		LogLevel: "info",
		Recognizer: RecognizerConfig{
			Engine:        pipeline.EnginePaddle,
			MinConfidence: 0.5,
		},
		Translation: TranslationConfig{
			Enabled:      true,
			BaseURL:      tc.BaseURL,
			Model:        tc.Model,
			Timeout:      tc.Timeout,
			ProbeTimeout: tc.ProbeTimeout,
		},
		Output: OutputConfig{Format: string(pipeline.FormatText)},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     25,
			TimeoutSec:      90,
			ShutdownTimeout: 10,
			MaxConnections:  64,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 30,
				RequestsPerHour:   600,
			},
		},
		Bot: BotConfig{
			APIEndpoint: "https://api.telegram.org/bot%s/%s",
			PollTimeout: 60,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	engines := []string{pipeline.EnginePaddle, pipeline.EngineTesseract}
	if !slices.Contains(engines, c.Recognizer.Engine) {
		return fmt.Errorf("invalid recognizer engine: %s (must be one of: %s)", c.Recognizer.Engine, strings.Join(engines, ", "))
	}
	if c.Recognizer.MinConfidence < 0 || c.Recognizer.MinConfidence > 1 {
		return fmt.Errorf("recognizer.min_confidence must be between 0.0 and 1.0, got %f", c.Recognizer.MinConfidence)
	}
	if c.Recognizer.NumThreads < 0 {
		return fmt.Errorf("invalid recognizer threads: %d", c.Recognizer.NumThreads)
	}

	if c.Translation.Enabled {
		if err := c.TranslateConfig().Validate(); err != nil {
			return err
		}
	}

	if _, err := batch.ParseFormat(c.Output.Format); err != nil {
		return err
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("invalid max connections: %d", c.Server.MaxConnections)
	}
	if c.Bot.PollTimeout < 0 {
		return fmt.Errorf("invalid bot poll timeout: %d", c.Bot.PollTimeout)
	}
	return nil
}

// TranslateConfig returns the translation client configuration.
func (c *Config) TranslateConfig() translate.Config {
	return translate.Config{
		BaseURL:      c.Translation.BaseURL,
		Model:        c.Translation.Model,
		Timeout:      c.Translation.Timeout,
		ProbeTimeout: c.Translation.ProbeTimeout,
	}
}

// BackendConfig returns the recognizer configuration for pipeline.LoadBackends.
func (c *Config) BackendConfig() pipeline.BackendConfig {
	return pipeline.BackendConfig{
		Engine:         c.Recognizer.Engine,
		ModelsDir:      c.Recognizer.ModelsDir,
		LibraryPath:    c.Recognizer.OnnxLibPath,
		NumThreads:     c.Recognizer.NumThreads,
		MinConfidence:  c.Recognizer.MinConfidence,
		TessdataPrefix: c.Recognizer.TessdataPrefix,
	}
}

// PipelineConfig returns the pipeline options.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Translate: c.Translation.Enabled,
		DebugDir:  c.Conditioner.DebugDir,
		Workers:   c.Batch.Workers,
	}
}
