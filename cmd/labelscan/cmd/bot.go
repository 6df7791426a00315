package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelscan/internal/bot"
	"github.com/MeKo-Tech/labelscan/internal/config"
)

func newBotCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long: `Run a Telegram bot that answers label photos with the recognized text and
its Spanish translation. The bot long-polls Telegram until interrupted.

The token is read from bot.token in the config file, LABELSCAN_BOT_TOKEN or
--token.

Commands understood by the bot: /start, /help, /health

Examples:
  LABELSCAN_BOT_TOKEN=123:abc labelscan bot
  labelscan bot --translate-url http://gpu-box:11434`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBot(cmd)
		},
	}
	fs := cmd.Flags()
	fs.String("token", "", "Telegram bot token")
	fs.Int("poll-timeout", 60, "long polling timeout in seconds")
	fs.Bool("bot-debug", false, "log Telegram API traffic")
	fs.String("save-conditioned", "", "directory to save the conditioned images in")
	addRecognizerFlags(fs)
	addTranslationFlags(fs)
	return cmd
}

// botConfig maps the bot section onto bot.Config.
func botConfig(c config.BotConfig) bot.Config {
	bc := bot.DefaultConfig()
	bc.Token = c.Token
	if c.APIEndpoint != "" {
		bc.APIEndpoint = c.APIEndpoint
	}
	if c.PollTimeout > 0 {
		bc.PollTimeout = c.PollTimeout
	}
	bc.Debug = c.Debug
	return bc
}

func (a *app) runBot(cmd *cobra.Command) error {
	bc := botConfig(a.cfg.Bot)
	api, err := bot.Connect(bc)
	if err != nil {
		return err
	}

	p, client, err := a.buildPipeline()
	if err != nil {
		return err
	}
	defer closePipeline(p)

	var prober bot.Prober
	if client != nil {
		prober = client
	}
	b, err := bot.New(bc, api, p, prober)
	if err != nil {
		return err
	}
	slog.Info("Telegram bot started", "username", api.Self.UserName, "translation", p.TranslationEnabled())
	return b.Run(cmd.Context())
}
