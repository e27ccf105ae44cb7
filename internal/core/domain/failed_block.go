package domain

// FailedBlock represents a height whose processing failed and is queued for retry.
type FailedBlock struct {
	ID          string            `json:"id"`
	BlockNumber uint64            `json:"block_number"`
	FailureType FailureType       `json:"failure_type"`
	Error       string            `json:"error_msg"`
	RetryCount  int               `json:"retry_count"`
	Status      FailedBlockStatus `json:"status"`
	LastAttempt int64             `json:"last_attempt"`
	CreatedAt   int64             `json:"created_at"`
}

type FailedBlockStatus string

const (
	FailedBlockStatusPending  FailedBlockStatus = "pending"
	FailedBlockStatusResolved FailedBlockStatus = "resolved"
	FailedBlockStatusIgnored  FailedBlockStatus = "ignored"
)

type FailureType string

const (
	FailureTypeRPC      FailureType = "rpc"
	FailureTypeDatabase FailureType = "database"
	FailureTypeUnknown  FailureType = "unknown"
)
