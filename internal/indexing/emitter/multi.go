package emitter

import (
	"context"
	"errors"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
)

// Multi fans one event out to several emitters.
type Multi struct {
	emitters []Emitter
}

var _ Emitter = (*Multi)(nil)

// NewMulti skips nil emitters.
func NewMulti(emitters ...Emitter) *Multi {
	m := &Multi{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

// Emit hands the event to every emitter; errors are joined.
func (m *Multi) Emit(ctx context.Context, event *domain.DepositEvent) error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of wrapped emitters.
func (m *Multi) Len() int {
	return len(m.emitters)
}
