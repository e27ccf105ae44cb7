package domain

// Block is a block fetched with its full transaction objects.
type Block struct {
	Number       uint64
	Hash         string
	ParentHash   string
	Timestamp    uint64
	Transactions []*Transaction
}
