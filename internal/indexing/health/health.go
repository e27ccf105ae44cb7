// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth describes how far the watcher trails the chain.
type ChainHealth struct {
	Status          SystemStatus `json:"status"`
	LatestBlock     uint64       `json:"latest_block"`
	CursorBlock     uint64       `json:"cursor_block"`
	BlockLag        uint64       `json:"block_lag"`
	FailedBlocks    int          `json:"failed_blocks"`
	BlocksPerSecond float64      `json:"blocks_per_second"`
	Error           string       `json:"error,omitempty"`
}

// ComponentHealth is the result of one dependency check.
type ComponentHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Chain        ChainHealth                `json:"chain"`
	Components   map[string]ComponentHealth `json:"components,omitempty"`
	CheckedAt    time.Time                  `json:"checked_at"`
}

// worse returns the more severe of two statuses.
func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
