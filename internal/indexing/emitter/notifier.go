package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/indexing/metrics"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
)

// weiPerEther shifts wei amounts into ether.
const weiPerEther = 18

// Sender delivers a text message to one recipient.
type Sender interface {
	SendMessage(ctx context.Context, recipientID string, text string) error
}

// Notifier sends a human-readable message about each valid deposit to every
// subscriber. One subscriber failing does not affect the others.
type Notifier struct {
	sender      Sender
	subs        storage.SubscriptionRepository
	sendTimeout time.Duration
	transport   string
	log         *slog.Logger
}

var _ Sink = (*Notifier)(nil)

// NewNotifier creates a notifier. transport labels metrics, e.g. "telegram".
func NewNotifier(
	sender Sender,
	subs storage.SubscriptionRepository,
	transport string,
	sendTimeout time.Duration,
) *Notifier {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Notifier{
		sender:      sender,
		subs:        subs,
		sendTimeout: sendTimeout,
		transport:   transport,
		log:         slog.Default().With("component", "notifier", "transport", transport),
	}
}

func (n *Notifier) Name() string { return n.transport }

// Deliver fans the formatted message out to all subscribers. Only listing
// subscribers can fail the delivery as a whole.
func (n *Notifier) Deliver(ctx context.Context, event *domain.DepositEvent) error {
	deposit := event.Deposit
	if deposit == nil || !deposit.IsValid() || event.EventType == domain.EventTypeDepositInvalidated {
		return nil
	}

	subscribers, err := n.subs.List(ctx)
	if err != nil {
		metrics.NotificationsFailed.WithLabelValues(n.transport).Inc()
		return fmt.Errorf("failed to list subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		n.log.Warn("no subscribers found for notifications", "hash", deposit.Hash)
		return nil
	}

	message := FormatDeposit(deposit)
	sent := 0
	for _, sub := range subscribers {
		if err := n.send(ctx, sub.RecipientID, message); err != nil {
			metrics.NotificationsFailed.WithLabelValues(n.transport).Inc()
			n.log.Error("failed to send notification",
				"recipient", sub.RecipientID,
				"hash", deposit.Hash,
				"error", err,
			)
			continue
		}
		sent++
		metrics.NotificationsSent.WithLabelValues(n.transport).Inc()
	}

	n.log.Info("deposit notification sent",
		"hash", deposit.Hash,
		"sent", sent,
		"subscribers", len(subscribers),
	)
	return nil
}

func (n *Notifier) send(ctx context.Context, recipientID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()
	return n.sender.SendMessage(ctx, recipientID, text)
}

// FormatDeposit renders the subscriber message for a deposit.
func FormatDeposit(d *domain.Deposit) string {
	return fmt.Sprintf("New Deposit Detected!\n\n"+
		"Block Number: %d\n"+
		"Transaction Hash: %s\n"+
		"Public Key: %s\n"+
		"Fee: %s ETH",
		d.BlockNumber,
		d.Hash,
		truncateKey(d.Pubkey),
		FormatEther(d.Fee),
	)
}

// FormatEther converts a base-10 wei amount to ether with six decimals.
// Unparseable input renders as-is.
func FormatEther(wei string) string {
	amount, err := decimal.NewFromString(wei)
	if err != nil {
		return wei
	}
	return amount.Shift(-weiPerEther).StringFixedBank(6)
}

func truncateKey(pubkey string) string {
	switch {
	case pubkey == "":
		return "unknown"
	case len(pubkey) <= 20:
		return pubkey
	default:
		return pubkey[:10] + "..." + pubkey[len(pubkey)-10:]
	}
}
