// Package bot answers label photos sent to a Telegram bot with the
// recognized text and its Spanish translation.
package bot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/translate"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Scanner runs one photo through the label pipeline.
type Scanner interface {
	Process(ctx context.Context, img image.Image) (*pipeline.Result, error)
}

// Prober checks the translation server for /health.
type Prober interface {
	Ping(ctx context.Context) (*translate.Status, error)
}

// Config configures the bot.
type Config struct {
	Token string
	// APIEndpoint is a format string taking the token and the method.
	APIEndpoint string
	// FileEndpoint is a format string taking the token and the file path.
	FileEndpoint  string
	PollTimeout   int // seconds
	MaxPhotoBytes int64
	ScanTimeout   time.Duration
	Debug         bool
}

// DefaultConfig returns the configuration for api.telegram.org.
func DefaultConfig() Config {
	return Config{
		APIEndpoint:   tgbotapi.APIEndpoint,
		FileEndpoint:  tgbotapi.FileEndpoint,
		PollTimeout:   60,
		MaxPhotoBytes: 20 << 20,
		ScanTimeout:   2 * time.Minute,
	}
}

// Bot handles Telegram updates.
type Bot struct {
	config  Config
	api     API
	scanner Scanner
	prober  Prober
	http    *http.Client
	sleep   func(ctx context.Context, d time.Duration) bool
}

// New creates a bot over api. The prober may be nil when translation is
// disabled.
func New(cfg Config, api API, scanner Scanner, prober Prober) (*Bot, error) {
	if api == nil {
		return nil, errors.New("telegram API is required")
	}
	if scanner == nil {
		return nil, errors.New("scanner is required")
	}
	def := DefaultConfig()
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = def.FileEndpoint
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.MaxPhotoBytes <= 0 {
		cfg.MaxPhotoBytes = def.MaxPhotoBytes
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = def.ScanTimeout
	}
	return &Bot{
		config:  cfg,
		api:     api,
		scanner: scanner,
		prober:  prober,
		http:    &http.Client{Timeout: 60 * time.Second},
		sleep:   sleepCtx,
	}, nil
}

// Connect logs in to Telegram with cfg.Token.
func Connect(cfg Config) (*tgbotapi.BotAPI, error) {
	if cfg.Token == "" {
		return nil, errors.New("bot token is empty: set bot.token or LABELSCAN_BOT_TOKEN")
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	api.Debug = cfg.Debug
	return api, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
