package indexer

import (
	"errors"
	"time"
)

// State is a step of the poll loop.
type State string

const (
	StateIdle          State = "idle"
	StateFetchTip      State = "fetch_tip"
	StateReorgCheck    State = "reorg_check"
	StateProcessBlocks State = "process_blocks"
	StateRetryFailed   State = "retry_failed"
	StateSleep         State = "sleep"
	StateBackoff       State = "backoff"
	StateStopped       State = "stopped"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	StateStopped:       {StateIdle, StateFetchTip},
	StateIdle:          {StateFetchTip, StateStopped},
	StateFetchTip:      {StateReorgCheck, StateRetryFailed, StateBackoff, StateStopped},
	StateReorgCheck:    {StateProcessBlocks, StateBackoff, StateStopped},
	StateProcessBlocks: {StateRetryFailed, StateBackoff, StateStopped},
	StateRetryFailed:   {StateSleep, StateBackoff, StateStopped},
	StateSleep:         {StateIdle, StateStopped},
	StateBackoff:       {StateIdle, StateStopped},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Timestamp time.Time
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case StateIdle:
		return "waiting to start a poll cycle"
	case StateFetchTip:
		return "reading the chain tip"
	case StateReorgCheck:
		return "re-validating recent deposits"
	case StateProcessBlocks:
		return "processing new blocks"
	case StateRetryFailed:
		return "retrying a failed block"
	case StateSleep:
		return "waiting for the next poll"
	case StateBackoff:
		return "backing off after an error"
	case StateStopped:
		return "not running"
	default:
		return "unknown state"
	}
}
