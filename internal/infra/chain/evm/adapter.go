package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/infra/chain"
	"github.com/vietddude/deposit-watcher/internal/infra/rpc/provider"
	"github.com/vietddude/deposit-watcher/internal/infra/rpc/routing"
)

// EVMAdapter implements chain.Reader over Ethereum JSON-RPC.
type EVMAdapter struct {
	client provider.RPCProvider
	retry  routing.RetryConfig
	log    *slog.Logger
}

var _ chain.Reader = (*EVMAdapter)(nil)

func NewEVMAdapter(client provider.RPCProvider, retry routing.RetryConfig) *EVMAdapter {
	return &EVMAdapter{
		client: client,
		retry:  retry,
		log:    slog.Default().With("component", "evm"),
	}
}

func (a *EVMAdapter) call(ctx context.Context, method string, params ...any) (any, error) {
	return routing.CallWithRetry(ctx, a.client, method, params, a.retry)
}

func (a *EVMAdapter) LatestBlockNumber(ctx context.Context) (uint64, error) {
	result, err := a.call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}

	blockHex, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("invalid block number response: %v", result)
	}
	return hexutil.DecodeUint64(blockHex)
}

func (a *EVMAdapter) BlockByNumber(ctx context.Context, number uint64) (*domain.Block, error) {
	result, err := a.call(ctx, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true)
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber %d failed: %w", number, err)
	}
	if result == nil {
		return nil, fmt.Errorf("block %d: %w", number, chain.ErrNotFound)
	}

	rawBlock, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid block format for %d", number)
	}
	return a.parseBlock(rawBlock)
}

func (a *EVMAdapter) TransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	result, err := a.call(ctx, "eth_getTransactionByHash", hash)
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash %s failed: %w", hash, err)
	}
	if result == nil {
		return nil, fmt.Errorf("transaction %s: %w", hash, chain.ErrNotFound)
	}

	raw, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid transaction format for %s", hash)
	}
	return parseTransaction(raw)
}

func (a *EVMAdapter) parseBlock(raw map[string]any) (*domain.Block, error) {
	number, err := decodeUint(raw["number"])
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	timestamp, err := decodeUint(raw["timestamp"])
	if err != nil {
		return nil, fmt.Errorf("block %d timestamp: %w", number, err)
	}

	block := &domain.Block{
		Number:     number,
		Hash:       strings.ToLower(getString(raw["hash"])),
		ParentHash: strings.ToLower(getString(raw["parentHash"])),
		Timestamp:  timestamp,
	}

	rawTxs, _ := raw["transactions"].([]any)
	block.Transactions = make([]*domain.Transaction, 0, len(rawTxs))
	for i, txRaw := range rawTxs {
		txData, ok := txRaw.(map[string]any)
		if !ok {
			// hash-only block bodies carry no calldata
			return nil, fmt.Errorf("block %d: transaction %d is not a full object", number, i)
		}
		tx, err := parseTransaction(txData)
		if err != nil {
			a.log.Warn("parse tx failed", "block", number, "index", i, "error", err)
			continue
		}
		block.Transactions = append(block.Transactions, tx)
	}

	return block, nil
}

func parseTransaction(raw map[string]any) (*domain.Transaction, error) {
	hash := getString(raw["hash"])
	if hash == "" {
		return nil, fmt.Errorf("transaction without hash")
	}

	tx := &domain.Transaction{
		Hash: strings.ToLower(hash),
		From: strings.ToLower(getString(raw["from"])),
		To:   strings.ToLower(getString(raw["to"])),
	}

	input := getString(raw["input"])
	if input == "" {
		input = getString(raw["data"])
	}
	if input != "" {
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("tx %s input: %w", hash, err)
		}
		tx.Input = data
	}

	gas, err := decodeUint(raw["gas"])
	if err != nil {
		return nil, fmt.Errorf("tx %s gas: %w", hash, err)
	}
	tx.Gas = gas

	priceHex := getString(raw["gasPrice"])
	if priceHex == "" {
		priceHex = getString(raw["maxFeePerGas"])
	}
	if priceHex != "" {
		price, err := hexutil.DecodeBig(priceHex)
		if err != nil {
			return nil, fmt.Errorf("tx %s gasPrice: %w", hash, err)
		}
		tx.GasPrice = price
	} else {
		tx.GasPrice = new(big.Int)
	}

	if raw["blockNumber"] == nil {
		tx.Pending = true
		return tx, nil
	}
	tx.BlockNumber, err = decodeUint(raw["blockNumber"])
	if err != nil {
		return nil, fmt.Errorf("tx %s blockNumber: %w", hash, err)
	}
	tx.BlockHash = strings.ToLower(getString(raw["blockHash"]))
	return tx, nil
}

func decodeUint(v any) (uint64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("expected hex string, got %T", v)
	}
	return hexutil.DecodeUint64(s)
}

func getString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
