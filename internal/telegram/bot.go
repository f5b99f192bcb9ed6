// Package telegram adapts the Telegram Bot API to the conversation layer's
// transport interface and routes inbound updates to it.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dodey917/nomarddeskassist-bot/internal/conversation"
)

// maxMessageLen is Telegram's practical per-message limit; longer outbound
// texts are chunked.
const maxMessageLen = 4000

const genericApologyText = "😔 Sorry, something went wrong. Please try again."

// Bot wraps the Telegram client. It implements conversation.Transport.
type Bot struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

// New connects to the Telegram Bot API with the given token.
func New(token string) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return &Bot{
		api:        api,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Username returns the bot account's username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// SendText sends a text message, chunked at the platform limit.
func (b *Bot) SendText(chatID int64, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}
	return nil
}

// SendChoices sends a text message with an inline keyboard, two buttons per row.
func (b *Bot) SendChoices(chatID int64, text string, choices []conversation.Choice) error {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(choices); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(choices[i].Label, choices[i].Data),
		}
		if i+1 < len(choices) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(choices[i+1].Label, choices[i+1].Data))
		}
		rows = append(rows, row)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("sending choices: %w", err)
	}
	return nil
}

// Run long-polls for updates and dispatches them to the controller, one at a
// time. It returns when ctx is cancelled.
func (b *Bot) Run(ctx context.Context, ctrl *conversation.Controller) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	slog.Info("telegram bot started", "username", b.Username())

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, ctrl, update)
		}
	}
}

// handleUpdate converts one Telegram update into a controller call. Errors
// the controller did not classify are logged with detail and answered with a
// generic apology; the session is cleared so the user can start fresh.
func (b *Bot) handleUpdate(ctx context.Context, ctrl *conversation.Controller, update tgbotapi.Update) {
	var chatID int64
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic handling update", "chat_id", chatID, "panic", r)
			if chatID != 0 {
				ctrl.Reset(chatID)
				b.SendText(chatID, genericApologyText)
			}
		}
	}()

	var err error
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.Message == nil {
			return
		}
		chatID = cq.Message.Chat.ID
		// Ack so the client stops the button spinner; best effort.
		if _, ackErr := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); ackErr != nil {
			slog.Debug("acking callback", "error", ackErr)
		}
		ev := conversation.Event{ChatID: chatID, UserID: cq.From.ID}
		err = ctrl.HandleChoice(ctx, ev, cq.Data)

	case update.Message != nil:
		m := update.Message
		if m.From == nil {
			return
		}
		chatID = m.Chat.ID
		ev := conversation.Event{ChatID: chatID, UserID: m.From.ID, Text: m.Text}

		switch {
		case m.IsCommand():
			err = ctrl.HandleCommand(ctx, ev, m.Command(), m.CommandArguments())
		case len(m.Photo) > 0:
			// The last PhotoSize is the largest rendition.
			err = b.handleReceiptFile(ctx, ctrl, ev, m.Photo[len(m.Photo)-1].FileID, "image/jpeg")
		case m.Document != nil && isReceiptDocument(m.Document.MimeType):
			err = b.handleReceiptFile(ctx, ctrl, ev, m.Document.FileID, m.Document.MimeType)
		case m.Text != "":
			err = ctrl.HandleText(ctx, ev)
		}
	}

	if err != nil {
		slog.Error("handling update", "chat_id", chatID, "error", err)
		ctrl.Reset(chatID)
		if sendErr := b.SendText(chatID, genericApologyText); sendErr != nil {
			slog.Error("sending apology", "chat_id", chatID, "error", sendErr)
		}
	}
}

func (b *Bot) handleReceiptFile(ctx context.Context, ctrl *conversation.Controller, ev conversation.Event, fileID, contentType string) error {
	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		slog.Error("downloading receipt file", "chat_id", ev.ChatID, "error", err)
		return b.SendText(ev.ChatID, "I couldn't download that file. Please try sending it again.")
	}
	return ctrl.HandlePhoto(ctx, ev, data, contentType)
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("resolving file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// isReceiptDocument limits document handling to formats the extractor can read.
func isReceiptDocument(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	return mimeType == "application/pdf" || strings.HasPrefix(mimeType, "image/")
}

// splitMessage chunks text at the limit, preferring newline boundaries.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text = strings.TrimRight(text, "\n"); text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
