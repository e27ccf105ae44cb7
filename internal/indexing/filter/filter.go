package filter

import (
	"errors"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
)

// ErrInvalidAddress is returned when adding something that is not a 20-byte hex address.
var ErrInvalidAddress = errors.New("invalid address")

// Filter defines the interface for address filtering
type Filter interface {
	// Contains checks if an address is tracked
	Contains(address string) bool

	// Add adds an address to the filter
	Add(address string) error

	// Size returns the number of tracked addresses
	Size() int
}

// Qualifies reports whether tx is sent to a tracked address.
// Contract creations have no recipient and never qualify.
func Qualifies(f Filter, tx *domain.Transaction) bool {
	if tx == nil || tx.To == "" {
		return false
	}
	return f.Contains(tx.To)
}
