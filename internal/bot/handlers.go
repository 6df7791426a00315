package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/text"
	"github.com/MeKo-Tech/labelscan/internal/utils"
)

// MaxMessageRunes keeps replies under Telegram's 4096 character limit.
const MaxMessageRunes = 4000

const (
	msgHelp = "Envía una foto de una etiqueta y te devolveré el texto reconocido y su traducción al español.\n" +
		"Comandos: /help, /health"
	msgUnknownCommand = "Comando desconocido. Usa /help."
	msgSendPhoto      = "Envía una foto de la etiqueta."
	msgNoText         = "No se detectó texto legible."
	msgBadImage       = "No se pudo leer la imagen."
	msgService        = "Error de conexión con Ollama. Inténtalo de nuevo más tarde."
	msgProcessing     = "Error al procesar imagen."
	msgHealthOK       = "✅ Servidor de traducción disponible"
	msgHealthDisabled = "La traducción está desactivada."
)

// HandleUpdate answers one update.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, cid, msg.Command())
	case len(msg.Photo) > 0:
		// sizes are ordered smallest first
		ph := msg.Photo[len(msg.Photo)-1]
		b.handlePhoto(ctx, cid, ph.FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		b.handlePhoto(ctx, cid, msg.Document.FileID)
	default:
		b.send(cid, msgSendPhoto)
	}
}

func (b *Bot) handleCommand(ctx context.Context, cid int64, command string) {
	switch command {
	case "start", "help":
		b.send(cid, msgHelp)
	case "health":
		b.send(cid, b.healthText(ctx))
	default:
		b.send(cid, msgUnknownCommand)
	}
}

func (b *Bot) healthText(ctx context.Context) string {
	if b.prober == nil {
		return msgHealthDisabled
	}
	st, err := b.prober.Ping(ctx)
	if err != nil {
		return "❌ " + msgService + "\n" + err.Error()
	}
	if !st.HasModel() {
		return fmt.Sprintf("%s, pero el modelo %q no está instalado (ollama pull %s).", msgHealthOK, st.Model, st.Model)
	}
	return fmt.Sprintf("%s (modelo %s).", msgHealthOK, st.Model)
}

func (b *Bot) handlePhoto(ctx context.Context, cid int64, fileID string) {
	data, err := b.download(ctx, fileID)
	if err != nil {
		slog.Warn("Photo download failed", "chat_id", cid, "error", err)
		b.send(cid, msgProcessing)
		return
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		b.send(cid, msgBadImage)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.ScanTimeout)
	defer cancel()
	res, err := b.scanner.Process(ctx, img)
	b.send(cid, FormatReply(res, err))
}

// download fetches a Telegram file up to MaxPhotoBytes.
func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	f, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, err
	}
	if f.FileSize > 0 && int64(f.FileSize) > b.config.MaxPhotoBytes {
		return nil, fmt.Errorf("photo too large: %d bytes", f.FileSize)
	}
	url := fmt.Sprintf(b.config.FileEndpoint, b.config.Token, f.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, b.config.MaxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > b.config.MaxPhotoBytes {
		return nil, errors.New("photo too large")
	}
	return data, nil
}

// FormatReply renders a pipeline outcome as a chat message. Service and
// content failures get different wording; recognized text is kept when
// only the translation failed.
func FormatReply(res *pipeline.Result, err error) string {
	if res == nil {
		info := pipeline.DescribeError(err)
		if info.Category == pipeline.CategoryInput {
			return msgBadImage
		}
		return msgProcessing
	}
	if !res.HasText() {
		return msgNoText
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 Texto reconocido (%s):\n%s\n\n", languageName(res.Language), res.RecognizedText)
	switch {
	case res.TranslationError != nil && res.TranslationError.Category == pipeline.CategoryService:
		sb.WriteString("⚠️ " + msgService)
	case res.TranslationError != nil:
		sb.WriteString("⚠️ Error en traducción: " + res.TranslationError.Message)
	case res.TranslatedText != "":
		sb.WriteString("🇪🇸 Traducción:\n" + res.TranslatedText)
	}
	return Truncate(strings.TrimSpace(sb.String()), MaxMessageRunes)
}

func languageName(tag text.LanguageTag) string {
	switch tag {
	case text.English:
		return "inglés"
	case text.Korean:
		return "coreano"
	case text.Chinese:
		return "chino"
	case text.MixedAsian:
		return "asiático mixto"
	default:
		return "idioma desconocido"
	}
}

// Truncate cuts s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (b *Bot) send(chatID int64, body string) {
	msg := tgbotapi.NewMessage(chatID, Truncate(body, MaxMessageRunes))
	if _, err := b.api.Send(msg); err != nil {
		slog.Warn("Failed to send Telegram message", "chat_id", chatID, "error", err)
	}
}
