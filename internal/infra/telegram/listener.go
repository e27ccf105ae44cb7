package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Replies sent for each command.
const (
	ReplySubscribed        = "You have successfully subscribed to deposit notifications!"
	ReplySubscribeFailed   = "An error occurred while subscribing. Please try again later."
	ReplyUnsubscribed      = "You have been unsubscribed from deposit notifications."
	ReplyUnsubscribeFailed = "An error occurred while unsubscribing. Please try again later."
	ReplyTestSent          = "Test notification sent successfully!"
	ReplyTestFailed        = "Failed to send test notification. Please check the logs."
)

// SubscriptionService is what the commands act on.
type SubscriptionService interface {
	Subscribe(ctx context.Context, recipientID string) (bool, error)
	Unsubscribe(ctx context.Context, recipientID string) (bool, error)
	SendTest(ctx context.Context, recipientID string) error
}

// Listener long-polls the bot for commands.
type Listener struct {
	bot         *Bot
	subs        SubscriptionService
	pollTimeout int
	backoff     time.Duration
	offset      int
	log         *slog.Logger
}

// NewListener creates a command listener. pollTimeout is in seconds.
func NewListener(bot *Bot, subs SubscriptionService, pollTimeout int) *Listener {
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &Listener{
		bot:         bot,
		subs:        subs,
		pollTimeout: pollTimeout,
		backoff:     5 * time.Second,
		log:         slog.Default().With("component", "telegram"),
	}
}

// Run polls until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.log.Info("telegram command listener started")
	for {
		if err := l.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.log.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.backoff):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// PollOnce fetches one batch of updates and handles them.
func (l *Listener) PollOnce(ctx context.Context) error {
	updates, err := l.bot.GetUpdates(ctx, l.offset, l.pollTimeout)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if u.UpdateID >= l.offset {
			l.offset = u.UpdateID + 1
		}
		if u.Message == nil {
			continue
		}
		l.handle(ctx, u.Message)
	}
	return nil
}

func (l *Listener) handle(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	var reply string
	switch command(msg.Text) {
	case "subscribe":
		reply = ReplySubscribed
		if _, err := l.subs.Subscribe(ctx, chatID); err != nil {
			l.log.Error("error subscribing user", "chat_id", chatID, "error", err)
			reply = ReplySubscribeFailed
		}
	case "unsubscribe":
		reply = ReplyUnsubscribed
		if _, err := l.subs.Unsubscribe(ctx, chatID); err != nil {
			l.log.Error("error unsubscribing user", "chat_id", chatID, "error", err)
			reply = ReplyUnsubscribeFailed
		}
	case "test_notification":
		reply = ReplyTestSent
		if err := l.subs.SendTest(ctx, chatID); err != nil {
			l.log.Error("failed to send test notification", "chat_id", chatID, "error", err)
			reply = ReplyTestFailed
		}
	default:
		return
	}

	if err := l.bot.SendMessage(ctx, chatID, reply); err != nil {
		l.log.Error("failed to reply", "chat_id", chatID, "error", err)
	}
}

// command extracts "subscribe" from "/subscribe@DepositBot extra".
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text[1:])
	if len(name) == 0 {
		return ""
	}
	cmd, _, _ := strings.Cut(name[0], "@")
	return strings.ToLower(cmd)
}
