package bot

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	baseDelay = time.Second
	maxDelay  = 15 * time.Second
	idleDelay = 200 * time.Millisecond
)

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// Run long-polls for updates until ctx is cancelled. Polling errors are
// retried with exponential backoff, honouring Telegram's retry hints.
func (b *Bot) Run(ctx context.Context) error {
	offset := 0
	failures := 0
	slog.Info("Telegram polling started", "timeout_sec", b.config.PollTimeout)

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("Telegram polling stopped")
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = b.config.PollTimeout
		updates, err := b.api.GetUpdates(u)
		if err != nil {
			failures++
			d := backoff(failures, err)
			slog.Warn("Polling failed", "error", err, "retry_in", d.String())
			if !b.sleep(ctx, d) {
				return nil
			}
			continue
		}
		failures = 0

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
		if len(updates) == 0 && !b.sleep(ctx, idleDelay) {
			return nil
		}
	}
}

// backoff doubles the delay per consecutive failure, starting from the
// retry hint in err when there is one.
func backoff(failures int, err error) time.Duration {
	d := retryDelay(err)
	for i := 1; i < failures && d < maxDelay; i++ {
		d *= 2
	}
	return min(max(d, baseDelay), maxDelay)
}

func retryDelay(err error) time.Duration {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return baseDelay
}
