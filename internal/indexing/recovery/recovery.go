// Package recovery retries blocks whose processing failed.
//
// Failed heights are queued with a failure type and retried one at a time
// with exponential backoff. Permanent failures and entries that exhausted
// their attempts are dropped from the queue and logged.
package recovery

import (
	"errors"
	"net"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/infra/chain"
	"github.com/vietddude/deposit-watcher/internal/infra/rpc/provider"
	"github.com/vietddude/deposit-watcher/internal/infra/rpc/routing"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
)

// FailureCategory says whether retrying can help.
type FailureCategory int

const (
	CategoryTransient FailureCategory = iota
	CategoryPermanent
)

// Classifier maps an error to a failure category.
type Classifier func(err error) FailureCategory

// RPCClassifier treats JSON-RPC client errors as permanent and everything
// else as transient.
func RPCClassifier(err error) FailureCategory {
	if routing.ClassifyError(err) == routing.ActionFatal {
		return CategoryPermanent
	}
	return CategoryTransient
}

// FailureTypeOf maps an error to the failure type stored with the block.
func FailureTypeOf(err error) domain.FailureType {
	var (
		rpcErr  *provider.RPCError
		httpErr *provider.HTTPStatusError
		netErr  net.Error
	)
	switch {
	case errors.Is(err, storage.ErrStorage):
		return domain.FailureTypeDatabase
	case errors.Is(err, chain.ErrNotFound),
		errors.As(err, &rpcErr),
		errors.As(err, &httpErr),
		errors.As(err, &netErr):
		return domain.FailureTypeRPC
	default:
		return domain.FailureTypeUnknown
	}
}
