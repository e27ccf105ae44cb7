package indexer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/vietddude/deposit-watcher/internal/core/cursor"
	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/indexing/decoder"
	"github.com/vietddude/deposit-watcher/internal/indexing/emitter"
	"github.com/vietddude/deposit-watcher/internal/indexing/filter"
	"github.com/vietddude/deposit-watcher/internal/indexing/recovery"
	"github.com/vietddude/deposit-watcher/internal/indexing/reorg"
	"github.com/vietddude/deposit-watcher/internal/infra/chain"
	"github.com/vietddude/deposit-watcher/internal/infra/storage/memory"
)

const depositContract = "0x00000000219ab540356cBB839Cbe05303d7705Fa"

// fakeChain serves blocks and transactions from maps.
type fakeChain struct {
	mu        sync.Mutex
	tip       uint64
	tipErr    error
	blocks    map[uint64]*domain.Block
	blockErrs map[uint64]error
	txs       map[string]*domain.Transaction
}

func newFakeChain(tip uint64) *fakeChain {
	return &fakeChain{
		tip:       tip,
		blocks:    make(map[uint64]*domain.Block),
		blockErrs: make(map[uint64]error),
		txs:       make(map[string]*domain.Transaction),
	}
}

func (c *fakeChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip, c.tipErr
}

func (c *fakeChain) BlockByNumber(ctx context.Context, n uint64) (*domain.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.blockErrs[n]; err != nil {
		return nil, err
	}
	if b, ok := c.blocks[n]; ok {
		return b, nil
	}
	// empty block
	return &domain.Block{Number: n, Timestamp: 1_700_000_000 + n}, nil
}

func (c *fakeChain) TransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tx, ok := c.txs[hash]; ok {
		return tx, nil
	}
	return nil, chain.ErrNotFound
}

// addBlock includes txs in block n and makes them findable by hash.
func (c *fakeChain) addBlock(n uint64, txs ...*domain.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tx := range txs {
		tx.BlockNumber = n
		c.txs[tx.Hash] = tx
	}
	c.blocks[n] = &domain.Block{Number: n, Timestamp: 1_700_000_000 + n, Transactions: txs}
}

func (c *fakeChain) drop(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.txs, hash)
}

func (c *fakeChain) failBlock(n uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.blockErrs, n)
		return
	}
	c.blockErrs[n] = err
}

func (c *fakeChain) setTip(tip uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tip = tip
}

// captureEmitter records emitted events synchronously.
type captureEmitter struct {
	mu     sync.Mutex
	events []*domain.DepositEvent
	err    error
}

func (e *captureEmitter) Emit(ctx context.Context, event *domain.DepositEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

func (e *captureEmitter) Close() error { return nil }

func (e *captureEmitter) types() []domain.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.EventType)
	}
	return out
}

var _ emitter.Emitter = (*captureEmitter)(nil)

func testPubkey() []byte {
	key := make([]byte, 48)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func depositInput(t *testing.T, pubkey []byte) []byte {
	t.Helper()
	input, err := decoder.EncodeDeposit(pubkey, make([]byte, 32), make([]byte, 96), [32]byte{})
	if err != nil {
		t.Fatalf("encode deposit: %v", err)
	}
	return input
}

func depositTx(t *testing.T, hash string) *domain.Transaction {
	return &domain.Transaction{
		Hash:     hash,
		To:       depositContract,
		Input:    depositInput(t, testPubkey()),
		Gas:      21000,
		GasPrice: big.NewInt(50_000_000_000),
	}
}

type harness struct {
	chain     *fakeChain
	store     *memory.MemoryStorage
	deposits  *memory.DepositRepo
	processed *memory.ProcessedBlockRepo
	failed    *memory.FailedRepo
	tracker   *cursor.Tracker
	emitter   *captureEmitter
	processor *Processor
	pipeline  *Pipeline
}

func newHarness(t *testing.T, tip uint64) *harness {
	t.Helper()
	h := &harness{
		chain:   newFakeChain(tip),
		store:   memory.NewMemoryStorage(),
		emitter: &captureEmitter{},
	}
	h.deposits = memory.NewDepositRepo(h.store)
	h.processed = memory.NewProcessedBlockRepo(h.store)
	h.failed = memory.NewFailedRepo(h.store)
	h.tracker = cursor.NewTracker(h.processed, cursor.DefaultLookback)

	f, err := filter.NewContractFilter(depositContract)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}

	h.processor = NewProcessor(ProcessorConfig{
		Reader:   h.chain,
		Filter:   f,
		Deposits: h.deposits,
		Cursor:   h.tracker,
		Emitter:  h.emitter,
	})

	backoff := recovery.DefaultBackoff(nil)
	backoff.InitialDelay = 0
	h.pipeline = NewPipeline(Config{
		Reader:    h.chain,
		Cursor:    h.tracker,
		Processor: h.processor,
		Reorg:     reorg.NewDetector(reorg.Config{}, h.chain, h.deposits, h.processor.Replay),
		Recovery:  recovery.NewHandler(h.failed, h.processor.Replay, backoff),
	})
	return h
}

func (h *harness) deposit(t *testing.T, hash string) *domain.Deposit {
	t.Helper()
	d, err := h.deposits.GetByHash(context.Background(), hash)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if d == nil {
		t.Fatalf("deposit %s not stored", hash)
	}
	return d
}

var errRPC = errors.New("connection refused")
