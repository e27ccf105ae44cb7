// Package provider implements the JSON-RPC transport to the chain node.
package provider

import (
	"context"
	"fmt"
	"time"
)

// RPCProvider makes JSON-RPC calls against a single endpoint.
type RPCProvider interface {
	// GetName returns provider identifier (e.g., "alchemy", "infura")
	GetName() string

	// Call makes a single RPC request. A null result is returned as nil, nil.
	Call(ctx context.Context, method string, params []any) (any, error)

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// Close cleans up resources
	Close() error
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPStatusError is returned for non-200 responses.
type HTTPStatusError struct {
	StatusCode int
	RetryAfter string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("http %d (retry after %s): %s", e.StatusCode, e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}
