package domain

import "time"

// DepositEvent is what gets published downstream for a stored deposit.
type DepositEvent struct {
	EventType EventType `json:"event_type"`
	Deposit   *Deposit  `json:"deposit"`
	EmittedAt int64     `json:"emitted_at"`
}

type EventType string

const (
	EventTypeDepositCreated     EventType = "deposit_created"
	EventTypeDepositRevalidated EventType = "deposit_revalidated"
	EventTypeDepositReplayed    EventType = "deposit_replayed"
	EventTypeDepositInvalidated EventType = "deposit_invalidated"
)

// NewDepositEvent stamps an event for d with the current time.
func NewDepositEvent(t EventType, d *Deposit) *DepositEvent {
	return &DepositEvent{EventType: t, Deposit: d, EmittedAt: time.Now().Unix()}
}
