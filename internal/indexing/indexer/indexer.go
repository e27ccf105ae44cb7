package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/deposit-watcher/internal/core/cursor"
	"github.com/vietddude/deposit-watcher/internal/indexing/recovery"
	"github.com/vietddude/deposit-watcher/internal/indexing/reorg"
	"github.com/vietddude/deposit-watcher/internal/infra/chain"
)

// ErrAlreadyRunning is returned by Start when the loop is already active.
var ErrAlreadyRunning = errors.New("pipeline already running")

// Indexer is the main orchestrator that coordinates all components
type Indexer interface {
	// Start runs the poll loop until the context is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop gracefully stops the indexer
	Stop() error

	// GetStatus returns current indexing status
	GetStatus() Status
}

type Status struct {
	Running         bool
	State           State
	CurrentBlock    uint64
	LatestBlock     uint64
	Lag             int64
	BlocksPerSecond float64
	LastCycleAt     time.Time
	LastError       string
}

// Config holds indexer configuration
type Config struct {
	Reader    chain.Reader
	Cursor    *cursor.Tracker
	Processor *Processor
	Reorg     *reorg.Detector
	// Recovery is optional; without it failed blocks are only logged
	Recovery *recovery.Handler

	PollInterval time.Duration // sleep between cycles (default: 15s)
	ErrorBackoff time.Duration // sleep after a failed cycle (default: 60s)
}

const (
	DefaultPollInterval = 15 * time.Second
	DefaultErrorBackoff = 60 * time.Second
)
