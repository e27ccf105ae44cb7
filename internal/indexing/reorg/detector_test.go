package reorg

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/infra/chain"
	"github.com/vietddude/deposit-watcher/internal/infra/storage/memory"
)

type fakeReader struct {
	txs    map[string]*domain.Transaction
	errs   map[string]error
	lookup []string
}

func (f *fakeReader) LatestBlockNumber(ctx context.Context) (uint64, error) { return 0, nil }

func (f *fakeReader) BlockByNumber(ctx context.Context, n uint64) (*domain.Block, error) {
	return nil, chain.ErrNotFound
}

func (f *fakeReader) TransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	f.lookup = append(f.lookup, hash)
	if err, ok := f.errs[hash]; ok {
		return nil, err
	}
	if tx, ok := f.txs[hash]; ok {
		return tx, nil
	}
	return nil, chain.ErrNotFound
}

func seed(t *testing.T, repo *memory.DepositRepo, deposits ...*domain.Deposit) {
	t.Helper()
	for _, d := range deposits {
		if _, err := repo.Upsert(context.Background(), d); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func status(t *testing.T, repo *memory.DepositRepo, hash string) domain.DepositStatus {
	t.Helper()
	d, err := repo.GetByHash(context.Background(), hash)
	if err != nil || d == nil {
		t.Fatalf("deposit %s not found: %v", hash, err)
	}
	return d.Status
}

func TestDetector_InvalidatesMissingTransaction(t *testing.T) {
	repo := memory.NewDepositRepo(memory.NewMemoryStorage())
	seed(t, repo, &domain.Deposit{Hash: "0xaa", BlockNumber: 1000, Fee: "1050000000000000"})

	reader := &fakeReader{}
	detector := NewDetector(Config{}, reader, repo, nil)

	result, err := detector.Check(context.Background(), 1005, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FromBlock != 1000 || result.ToBlock != 1005 {
		t.Errorf("expected window [1000,1005], got [%d,%d]", result.FromBlock, result.ToBlock)
	}
	if len(result.Invalidated) != 1 || result.Invalidated[0] != "0xaa" {
		t.Errorf("expected 0xaa invalidated, got %v", result.Invalidated)
	}
	if got := status(t, repo, "0xaa"); got != domain.DepositStatusInvalid {
		t.Errorf("expected invalid, got %s", got)
	}
}

func TestDetector_InvalidatesMovedAndPending(t *testing.T) {
	repo := memory.NewDepositRepo(memory.NewMemoryStorage())
	seed(t, repo,
		&domain.Deposit{Hash: "0xmoved", BlockNumber: 1001},
		&domain.Deposit{Hash: "0xpending", BlockNumber: 1002},
		&domain.Deposit{Hash: "0xok", BlockNumber: 1003},
	)

	reader := &fakeReader{txs: map[string]*domain.Transaction{
		"0xmoved":   {Hash: "0xmoved", BlockNumber: 1004},
		"0xpending": {Hash: "0xpending", Pending: true},
		"0xok":      {Hash: "0xok", BlockNumber: 1003},
	}}
	detector := NewDetector(Config{CheckDepth: 10}, reader, repo, nil)

	result, err := detector.Check(context.Background(), 1005, 990)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Checked != 3 {
		t.Errorf("expected 3 checked, got %d", result.Checked)
	}
	if got := status(t, repo, "0xmoved"); got != domain.DepositStatusInvalid {
		t.Errorf("moved deposit: expected invalid, got %s", got)
	}
	if got := status(t, repo, "0xpending"); got != domain.DepositStatusInvalid {
		t.Errorf("pending deposit: expected invalid, got %s", got)
	}
	if got := status(t, repo, "0xok"); got != domain.DepositStatusValid {
		t.Errorf("canonical deposit: expected valid, got %s", got)
	}
}

func TestDetector_IgnoresDepositsOutsideWindow(t *testing.T) {
	repo := memory.NewDepositRepo(memory.NewMemoryStorage())
	seed(t, repo,
		&domain.Deposit{Hash: "0xold", BlockNumber: 980},
		&domain.Deposit{Hash: "0xedge", BlockNumber: 990},
	)

	reader := &fakeReader{}
	detector := NewDetector(Config{CheckDepth: 10}, reader, repo, nil)

	if _, err := detector.Check(context.Background(), 1000, 900); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := status(t, repo, "0xold"); got != domain.DepositStatusValid {
		t.Errorf("deposit below window must not be re-checked, got %s", got)
	}
	if got := status(t, repo, "0xedge"); got != domain.DepositStatusInvalid {
		t.Errorf("deposit at window start: expected invalid, got %s", got)
	}
	for _, h := range reader.lookup {
		if h == "0xold" {
			t.Error("0xold was looked up")
		}
	}
}

func TestDetector_LookupErrorKeepsDeposit(t *testing.T) {
	repo := memory.NewDepositRepo(memory.NewMemoryStorage())
	seed(t, repo, &domain.Deposit{Hash: "0xaa", BlockNumber: 1000})

	reader := &fakeReader{errs: map[string]error{"0xaa": errors.New("timeout")}}
	detector := NewDetector(Config{}, reader, repo, nil)

	result, err := detector.Check(context.Background(), 1002, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Invalidated) != 0 {
		t.Errorf("expected nothing invalidated, got %v", result.Invalidated)
	}
	if got := status(t, repo, "0xaa"); got != domain.DepositStatusValid {
		t.Errorf("expected valid, got %s", got)
	}
}

func TestDetector_ReplaysOnlyProcessedHeights(t *testing.T) {
	repo := memory.NewDepositRepo(memory.NewMemoryStorage())
	var replayed []uint64
	replay := func(ctx context.Context, h uint64) error {
		replayed = append(replayed, h)
		if h == 997 {
			return errors.New("rpc down")
		}
		return nil
	}

	detector := NewDetector(Config{CheckDepth: 5}, &fakeReader{}, repo, replay)
	result, err := detector.Check(context.Background(), 1000, 998)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// window is [998, 1000]; only 998 is at or below the cursor
	if len(replayed) != 1 || replayed[0] != 998 {
		t.Errorf("expected replay of 998 only, got %v", replayed)
	}
	if result.Replayed != 1 {
		t.Errorf("expected 1 replayed, got %d", result.Replayed)
	}

	// window is [997, 1000]; the replay of 997 fails and is not counted
	replayed = nil
	result, err = detector.Check(context.Background(), 1000, 997)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replayed) != 1 || replayed[0] != 997 {
		t.Errorf("expected replay of 997 only, got %v", replayed)
	}
	if result.Replayed != 0 {
		t.Errorf("expected failed replay to be skipped, got %d", result.Replayed)
	}
}

func TestDetector_InvalidateCallback(t *testing.T) {
	repo := memory.NewDepositRepo(memory.NewMemoryStorage())
	seed(t, repo, &domain.Deposit{Hash: "0xaa", BlockNumber: 1000})

	detector := NewDetector(Config{}, &fakeReader{}, repo, nil)
	var got []*domain.Deposit
	detector.SetInvalidateCallback(func(ctx context.Context, d *domain.Deposit) {
		got = append(got, d)
	})

	if _, err := detector.Check(context.Background(), 1001, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Status != domain.DepositStatusInvalid {
		t.Fatalf("expected callback with invalid deposit, got %v", got)
	}

	// already invalid rows are not reported twice
	got = nil
	if _, err := detector.Check(context.Background(), 1001, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no callback for invalid row, got %d", len(got))
	}
}

func TestDetector_WindowNearGenesis(t *testing.T) {
	detector := NewDetector(Config{CheckDepth: 10}, &fakeReader{}, nil, nil)

	from, to := detector.Window(4, 0)
	if from != 0 || to != 4 {
		t.Errorf("expected [0,4], got [%d,%d]", from, to)
	}
}
