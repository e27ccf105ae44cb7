package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vietddude/deposit-watcher/internal/core/config"
	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/indexing/decoder"
)

const depositBlock = 5000

// newChainServer serves the three JSON-RPC methods the watcher uses. Block
// depositBlock carries one deposit; every other block is empty.
func newChainServer(t *testing.T, tip uint64, depositHash string) *httptest.Server {
	t.Helper()

	pubkey := make([]byte, 48)
	for i := range pubkey {
		pubkey[i] = byte(i + 1)
	}
	input, err := decoder.EncodeDeposit(pubkey, make([]byte, 32), make([]byte, 96), [32]byte{})
	if err != nil {
		t.Fatalf("encode deposit: %v", err)
	}
	tx := map[string]any{
		"hash":        depositHash,
		"from":        "0x1111111111111111111111111111111111111111",
		"to":          config.DefaultDepositContract,
		"input":       hexutil.Encode(input),
		"gas":         "0x5208",
		"gasPrice":    "0xba43b7400",
		"blockNumber": hexutil.EncodeUint64(depositBlock),
		"blockHash":   fmt.Sprintf("0x%064x", depositBlock),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     any    `json:"id"`
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		var result any
		switch req.Method {
		case "eth_blockNumber":
			result = hexutil.EncodeUint64(tip)
		case "eth_getBlockByNumber":
			n, _ := hexutil.DecodeUint64(req.Params[0].(string))
			txs := []any{}
			if n == depositBlock {
				txs = append(txs, tx)
			}
			result = map[string]any{
				"number":       hexutil.EncodeUint64(n),
				"hash":         fmt.Sprintf("0x%064x", n),
				"parentHash":   fmt.Sprintf("0x%064x", n-1),
				"timestamp":    hexutil.EncodeUint64(1_700_000_000 + n*12),
				"transactions": txs,
			}
		case "eth_getTransactionByHash":
			if req.Params[0] == depositHash {
				result = tx
			}
		default:
			t.Errorf("unexpected method %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(server.Close)
	return server
}

type sentMessage struct {
	ChatID string
	Text   string
}

// newTelegramServer accepts any token, records sendMessage calls and answers
// getUpdates with nothing.
func newTelegramServer(t *testing.T) (*httptest.Server, func() []sentMessage) {
	t.Helper()
	var (
		mu   sync.Mutex
		sent []sentMessage
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Deposit","username":"DepositBot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse sendMessage: %v", err)
			}
			mu.Lock()
			sent = append(sent, sentMessage{ChatID: r.FormValue("chat_id"), Text: r.FormValue("text")})
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		}
	}))
	t.Cleanup(server.Close)
	return server, func() []sentMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]sentMessage(nil), sent...)
	}
}

func testConfig(t *testing.T, yaml string) *config.AppConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestWatcher_IndexesDepositAndNotifies(t *testing.T) {
	hash := "0x" + strings.Repeat("ab", 32)
	chainSrv := newChainServer(t, depositBlock, hash)
	tgSrv, sent := newTelegramServer(t)

	cfg := testConfig(t, fmt.Sprintf(`
chain:
  rpc_url: %s
  max_attempts: 1
telegram:
  token: test-token
  api_url: %s
`, chainSrv.URL, tgSrv.URL))

	ctx := context.Background()
	w, err := NewWatcher(ctx, cfg, Options{})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if w.Storage().Backend != "memory" {
		t.Errorf("expected memory storage, got %s", w.Storage().Backend)
	}
	if _, err := w.Storage().Subscriptions.Add(ctx, "42"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := w.Pipeline().RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	dep, err := w.Storage().Deposits.GetByHash(ctx, hash)
	if err != nil || dep == nil {
		t.Fatalf("expected stored deposit, got %v %v", dep, err)
	}
	if dep.BlockNumber != depositBlock || dep.Fee != "1050000000000000" || !dep.IsValid() {
		t.Errorf("unexpected deposit %+v", dep)
	}
	if !strings.HasPrefix(dep.Pubkey, "0x0102") {
		t.Errorf("expected decoded pubkey, got %s", dep.Pubkey)
	}

	latest, ok, err := w.Storage().Blocks.Latest(ctx)
	if err != nil || !ok || latest != depositBlock {
		t.Errorf("expected processed through %d, got %d %v %v", depositBlock, latest, ok, err)
	}

	// Close drains the dispatcher
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	msgs := sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(msgs))
	}
	if msgs[0].ChatID != "42" || !strings.Contains(msgs[0].Text, hash) {
		t.Errorf("unexpected notification %+v", msgs[0])
	}
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	chainSrv := newChainServer(t, 10, "0xnone")
	cfg := testConfig(t, fmt.Sprintf(`
server:
  port: 0
chain:
  rpc_url: %s
tracker:
  poll_interval: 10ms
`, chainSrv.URL))
	cfg.Server.Port = 0

	w, err := NewWatcher(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		if pos, ok := w.tracker.Position(); ok && pos == 10 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("pipeline did not catch up to the tip")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestOpenStorage_RedisFailedQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, fmt.Sprintf(`
chain:
  rpc_url: http://localhost:8545
redis:
  url: redis://%s
  key_prefix: test
`, mr.Addr()))

	ctx := context.Background()
	store, err := OpenStorage(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	defer store.Close()

	if store.Backend != "memory" || store.FailedBackend != "redis" {
		t.Fatalf("unexpected backends %s/%s", store.Backend, store.FailedBackend)
	}

	err = store.Failed.Add(ctx, &domain.FailedBlock{ID: "f1", BlockNumber: 7, FailureType: domain.FailureTypeRPC})
	if err != nil {
		t.Fatalf("add failed block: %v", err)
	}
	if !mr.Exists("test:failed_blocks") {
		t.Error("expected failed block queued in redis")
	}
}

func TestOpenStorage_UnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig(t, `
chain:
  rpc_url: http://localhost:8545
redis:
  url: redis://127.0.0.1:1
`)
	store, err := OpenStorage(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	defer store.Close()
	if store.FailedBackend != "memory" {
		t.Errorf("expected memory fallback, got %s", store.FailedBackend)
	}
}
