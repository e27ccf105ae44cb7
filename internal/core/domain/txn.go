package domain

import "math/big"

// Transaction represents a chain transaction as returned by the node.
type Transaction struct {
	Hash        string
	From        string
	To          string // empty for contract creation
	Input       []byte
	Gas         uint64
	GasPrice    *big.Int
	BlockNumber uint64
	BlockHash   string
	// Pending is set when the node knows the transaction but it is not in a block.
	Pending bool
}

// Fee returns gas * gasPrice in wei.
func (t *Transaction) Fee() *big.Int {
	fee := new(big.Int).SetUint64(t.Gas)
	if t.GasPrice == nil {
		return fee.SetUint64(0)
	}
	return fee.Mul(fee, t.GasPrice)
}
