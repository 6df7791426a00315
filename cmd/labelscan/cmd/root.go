// Package cmd implements the labelscan command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/labelscan/internal/config"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/version"
)

// flagKeys maps command-line flags to configuration keys. Flags are bound
// for the command that runs, so commands may share flag names.
var flagKeys = map[string]string{
	"log-level": "log_level",
	"verbose":   "verbose",

	"engine":         "recognizer.engine",
	"models-dir":     "recognizer.models_dir",
	"onnx-lib":       "recognizer.onnx_lib_path",
	"threads":        "recognizer.num_threads",
	"min-confidence": "recognizer.min_confidence",
	"tessdata":       "recognizer.tessdata_prefix",

	"translate":         "translation.enabled",
	"translate-url":     "translation.base_url",
	"model":             "translation.model",
	"translate-timeout": "translation.timeout",

	"save-conditioned": "conditioner.debug_dir",
	"format":           "output.format",
	"output":           "output.file",

	"workers":           "batch.workers",
	"recursive":         "batch.recursive",
	"continue-on-error": "batch.continue_on_error",

	"host":                "server.host",
	"port":                "server.port",
	"cors-origin":         "server.cors_origin",
	"max-upload-size":     "server.max_upload_mb",
	"timeout":             "server.timeout_sec",
	"shutdown-timeout":    "server.shutdown_timeout",
	"max-connections":     "server.max_connections",
	"rate-limit":          "server.rate_limit.enabled",
	"requests-per-minute": "server.rate_limit.requests_per_minute",
	"requests-per-hour":   "server.rate_limit.requests_per_hour",

	"token":        "bot.token",
	"poll-timeout": "bot.poll_timeout",
	"bot-debug":    "bot.debug",
}

// BackendLoader creates the script recognizers for a configuration.
type BackendLoader func(pipeline.BackendConfig) (recognizer.Backends, error)

// Option customizes the command tree.
type Option func(*app)

// WithBackendLoader replaces the model loader, e.g. with fake recognizers.
func WithBackendLoader(l BackendLoader) Option {
	return func(a *app) { a.loadBackends = l }
}

// app carries the state shared by one command invocation.
type app struct {
	loader       *config.Loader
	cfgFile      string
	cfg          *config.Config
	loadBackends BackendLoader
}

// NewRootCommand builds the labelscan command tree on a private viper
// instance.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{
		loader:       config.NewLoaderWithViper(viper.New()),
		loadBackends: pipeline.LoadBackends,
	}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "labelscan",
		Short: "Read product labels and translate them to Spanish",
		Long: `labelscan reads the text on photographed product labels and translates it
to Spanish.

Each photo is conditioned (downscaled, contrast boosted, binarized), read by
Latin, Chinese and Korean recognizers in turn until one returns enough text,
cleaned up, classified by script and sent to a local Ollama server for
translation.

Examples:
  labelscan scan label.jpg
  labelscan scan label.jpg --format json --translate=false
  labelscan batch photos/ --recursive --workers 8 --format csv -o labels.csv
  labelscan serve --port 8080
  labelscan check`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetVersionTemplate(version.Info().String() + "\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/labelscan, /etc/labelscan)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")

	root.AddCommand(
		newScanCommand(a),
		newBatchCommand(a),
		newServeCommand(a),
		newBotCommand(a),
		newCheckCommand(a),
		newConditionCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command until it returns or SIGINT/SIGTERM arrives,
// and prints the error, if any, to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}

// init binds the running command's flags, loads the configuration and sets
// up logging.
func (a *app) init(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = a.loader.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return fmt.Errorf("binding flags: %w", bindErr)
	}

	cfg, err := a.loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	setupLogging(cmd.ErrOrStderr(), cfg)
	slog.Debug("Configuration loaded", "file", a.loader.GetConfigFileUsed())
	return nil
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(w io.Writer, cfg *config.Config) {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel(cfg)}))
	slog.SetDefault(logger)
}

// addRecognizerFlags registers the flags that select the script recognizers.
func addRecognizerFlags(fs *pflag.FlagSet) {
	fs.String("engine", "paddle", "recognition engine (paddle, tesseract)")
	fs.String("models-dir", "", "directory containing the recognition models (env LABELSCAN_MODELS_DIR)")
	fs.String("onnx-lib", "", "path to the ONNX Runtime shared library")
	fs.Int("threads", 0, "inference threads per recognizer (0 = runtime default)")
	fs.Float64("min-confidence", 0.5, "drop text lines recognized with a lower confidence")
	fs.String("tessdata", "", "tessdata directory for the tesseract engine")
}

// addTranslationFlags registers the flags for the Ollama server.
func addTranslationFlags(fs *pflag.FlagSet) {
	fs.Bool("translate", true, "translate the recognized text to Spanish")
	fs.String("translate-url", "", "Ollama base URL (default http://localhost:11434)")
	fs.String("model", "", "Ollama model used for translation")
	fs.Duration("translate-timeout", 0, "translation request timeout (default 60s)")
}
