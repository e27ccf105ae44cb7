package emitter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
)

// TestMessage is sent by SendTest.
const TestMessage = "This is a test notification!"

// Subscriptions manages notification recipients.
type Subscriptions struct {
	repo   storage.SubscriptionRepository
	sender Sender
	log    *slog.Logger
}

func NewSubscriptions(repo storage.SubscriptionRepository, sender Sender) *Subscriptions {
	return &Subscriptions{
		repo:   repo,
		sender: sender,
		log:    slog.Default().With("component", "subscriptions"),
	}
}

// Subscribe is idempotent; it reports whether the recipient is new.
func (s *Subscriptions) Subscribe(ctx context.Context, recipientID string) (bool, error) {
	created, err := s.repo.Add(ctx, recipientID)
	if err != nil {
		return false, fmt.Errorf("failed to subscribe %s: %w", recipientID, err)
	}
	s.log.Info("user subscribed to notifications", "recipient", recipientID, "new", created)
	return created, nil
}

// Unsubscribe reports whether the recipient was subscribed.
func (s *Subscriptions) Unsubscribe(ctx context.Context, recipientID string) (bool, error) {
	removed, err := s.repo.Remove(ctx, recipientID)
	if err != nil {
		return false, fmt.Errorf("failed to unsubscribe %s: %w", recipientID, err)
	}
	s.log.Info("user unsubscribed from notifications", "recipient", recipientID, "existed", removed)
	return removed, nil
}

// SendTest delivers TestMessage to one recipient, subscribed or not.
func (s *Subscriptions) SendTest(ctx context.Context, recipientID string) error {
	if s.sender == nil {
		return fmt.Errorf("no notification transport configured")
	}
	if err := s.sender.SendMessage(ctx, recipientID, TestMessage); err != nil {
		return fmt.Errorf("failed to send test notification to %s: %w", recipientID, err)
	}
	s.log.Info("test notification sent", "recipient", recipientID)
	return nil
}

func (s *Subscriptions) List(ctx context.Context) ([]*domain.Subscription, error) {
	return s.repo.List(ctx)
}
