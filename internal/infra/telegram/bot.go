// Package telegram adapts the Telegram Bot API client to the watcher: sending
// notifications and long-polling for subscriber commands.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot wraps a tgbotapi client. It satisfies emitter.Sender.
type Bot struct {
	api *tgbotapi.BotAPI
}

// NewBot connects to the Bot API and verifies the token with getMe. An empty
// apiURL uses the public endpoint.
func NewBot(token, apiURL string, timeout time.Duration) (*Bot, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	endpoint := tgbotapi.APIEndpoint
	if apiURL != "" {
		endpoint = strings.TrimRight(apiURL, "/") + "/bot%s/%s"
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", unwrapURLError(err))
	}
	return &Bot{api: api}, nil
}

// Username is the bot's handle as reported by getMe.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// SendMessage sends a plain text message to a chat.
func (b *Bot) SendMessage(ctx context.Context, chatID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return fmt.Errorf("telegram sendMessage failed: %w", unwrapURLError(err))
	}
	return nil
}

// GetUpdates long-polls for message updates after offset. timeout is in
// seconds; an in-flight poll is bounded by it rather than by ctx.
func (b *Bot) GetUpdates(ctx context.Context, offset int, timeout int) ([]tgbotapi.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	updates, err := b.api.GetUpdates(tgbotapi.UpdateConfig{
		Offset:         offset,
		Timeout:        timeout,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates failed: %w", unwrapURLError(err))
	}
	return updates, nil
}

// the request URL carries the token; keep it out of logs
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
