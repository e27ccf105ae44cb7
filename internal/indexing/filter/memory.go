package filter

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryFilter implements Filter interface using an in-memory map.
// Addresses are compared case-insensitively.
type MemoryFilter struct {
	addresses map[string]struct{}
	mu        sync.RWMutex
}

// NewMemoryFilter creates a new in-memory filter.
func NewMemoryFilter() *MemoryFilter {
	return &MemoryFilter{
		addresses: make(map[string]struct{}),
	}
}

// NewContractFilter builds a filter tracking the given contract addresses.
func NewContractFilter(addresses ...string) (*MemoryFilter, error) {
	f := NewMemoryFilter()
	if err := f.AddBatch(addresses); err != nil {
		return nil, err
	}
	return f, nil
}

// Contains checks if an address is tracked.
func (f *MemoryFilter) Contains(address string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.addresses[strings.ToLower(address)]
	return exists
}

// Add adds an address to the filter.
func (f *MemoryFilter) Add(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses[strings.ToLower(address)] = struct{}{}
	return nil
}

// AddBatch adds multiple addresses.
func (f *MemoryFilter) AddBatch(addresses []string) error {
	for _, addr := range addresses {
		if err := f.Add(addr); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of tracked addresses.
func (f *MemoryFilter) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.addresses)
}

// Addresses returns the tracked addresses, lowercased and sorted.
func (f *MemoryFilter) Addresses() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make([]string, 0, len(f.addresses))
	for addr := range f.addresses {
		result = append(result, addr)
	}
	slices.Sort(result)
	return result
}
