package domain

import "time"

// Subscription is a notification recipient, e.g. a Telegram chat id.
type Subscription struct {
	RecipientID  string    `json:"recipient_id"  db:"recipient_id"`
	SubscribedAt time.Time `json:"subscribed_at" db:"subscribed_at"`
}
