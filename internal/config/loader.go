package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "labelscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "LABELSCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra flag
// bindings apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a private viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and sets defaults.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation loads configuration the same way as Load but skips
// validation.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// a missing file is fine, defaults and env vars still apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile == "" {
		return l.LoadWithoutValidation()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// BindPFlag binds a command-line flag to a configuration key. The flag wins
// over the file and the environment once it is set.
func (l *Loader) BindPFlag(key string, flag *pflag.Flag) error {
	return l.v.BindPFlag(key, flag)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps recognizer.models_dir to LABELSCAN_RECOGNIZER_MODELS_DIR.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("recognizer.engine", d.Recognizer.Engine)
	l.v.SetDefault("recognizer.models_dir", d.Recognizer.ModelsDir)
	l.v.SetDefault("recognizer.onnx_lib_path", d.Recognizer.OnnxLibPath)
	l.v.SetDefault("recognizer.num_threads", d.Recognizer.NumThreads)
	l.v.SetDefault("recognizer.min_confidence", d.Recognizer.MinConfidence)
	l.v.SetDefault("recognizer.tessdata_prefix", d.Recognizer.TessdataPrefix)

	l.v.SetDefault("translation.enabled", d.Translation.Enabled)
	l.v.SetDefault("translation.base_url", d.Translation.BaseURL)
	l.v.SetDefault("translation.model", d.Translation.Model)
	l.v.SetDefault("translation.timeout", d.Translation.Timeout)
	l.v.SetDefault("translation.probe_timeout", d.Translation.ProbeTimeout)

	l.v.SetDefault("conditioner.debug_dir", d.Conditioner.DebugDir)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.recursive", d.Batch.Recursive)
	l.v.SetDefault("batch.continue_on_error", d.Batch.ContinueOnError)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.max_connections", d.Server.MaxConnections)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day_mb", d.Server.RateLimit.MaxDataPerDayMB)

	l.v.SetDefault("bot.token", d.Bot.Token)
	l.v.SetDefault("bot.api_endpoint", d.Bot.APIEndpoint)
	l.v.SetDefault("bot.poll_timeout", d.Bot.PollTimeout)
	l.v.SetDefault("bot.debug", d.Bot.Debug)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/"+ConfigFileName)
}

// PrintConfigInfo prints information about configuration loading.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
