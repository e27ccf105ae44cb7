package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/deposit-watcher/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialDelay:    1 * time.Second,
	MaxDelay:        30 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	// ActionThrottle retries after the maximum delay.
	ActionThrottle
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionThrottle:
		return "throttle"
	case ActionFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionFatal
	}

	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case -32700, -32600, -32601, -32602:
			return ActionFatal
		}
	}

	var httpErr *provider.HTTPStatusError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusForbidden, http.StatusUnauthorized:
			return ActionThrottle
		}
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return ActionFatal
	}

	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(sLower, "quota") || strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "count exceeded") {
		return ActionThrottle
	}

	// Network, 5xx, etc
	return ActionRetry
}

// CallWithRetry executes an RPC call with exponential backoff.
func CallWithRetry(
	ctx context.Context,
	p provider.RPCProvider,
	method string,
	params []any,
	config RetryConfig,
) (any, error) {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := p.Call(ctx, method, params)
		if err == nil {
			return result, nil
		}
		lastErr = err

		action := ClassifyError(err)
		if action == ActionFatal {
			return nil, err
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := calculateBackoff(attempt, config)
		if action == ActionThrottle {
			delay = config.MaxDelay
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", method, config.MaxAttempts, lastErr)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
