package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/deposit-watcher/internal/indexing/metrics"
)

// HTTPProvider implements RPCProvider for JSON-RPC 2.0 over HTTP.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int
}

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call makes a single JSON-RPC call and decodes the result into generic JSON
// values (map[string]any, []any, string, ...).
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (any, error) {
	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(p.name, method).Inc()

	result, err := p.call(ctx, method, params)
	latency := time.Since(start)
	metrics.RPCLatency.WithLabelValues(p.name, method).Observe(latency.Seconds())

	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(p.name, method).Inc()
		p.recordFailure()
		return nil, err
	}
	p.recordSuccess(latency)
	return result, nil
}

func (p *HTTPProvider) call(ctx context.Context, method string, params []any) (any, error) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      p.nextID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Body:       string(respBody),
		}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil, nil
	}

	var result any
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}
	return result, nil
}

// GetName returns the provider's name.
func (p *HTTPProvider) GetName() string {
	return p.name
}

// GetHealth returns the provider's health status.
func (p *HTTPProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *HTTPProvider) recordSuccess(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.requestCount++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true
	p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	p.health.Latency = p.totalLatency / time.Duration(p.successCount)
}

func (p *HTTPProvider) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.requestCount++
	p.health.LastFailureAt = time.Now()
	p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)

	if p.health.ErrorRate > 0.5 {
		p.health.Available = false
	}
}
