// Package decorators wraps entry stores with cross-cutting behaviour.
package decorators

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/application/ports"
	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
	"github.com/maxsergeev/YD-Project-2/pkg/observability"
)

// ResilienceConfig configures the resilient store
type ResilienceConfig struct {
	Name string
	// Timeout bounds each call to the wrapped store
	Timeout time.Duration
	// MaxFailures consecutive storage failures open the circuit
	MaxFailures uint32
	// OpenFor is how long the circuit rejects calls before probing again
	OpenFor time.Duration
}

// DefaultResilienceConfig returns sensible defaults.
func DefaultResilienceConfig(name string) ResilienceConfig {
	return ResilienceConfig{
		Name:        name,
		Timeout:     5 * time.Second,
		MaxFailures: 5,
		OpenFor:     30 * time.Second,
	}
}

// ResilientStore bounds every call to the wrapped store with a timeout and a
// circuit breaker, and reports every failure as StorageUnavailable.
type ResilientStore struct {
	inner   ports.EntryStore
	config  ResilienceConfig
	breaker *gobreaker.CircuitBreaker
	metrics observability.Recorder
	logger  *zap.Logger
}

// NewResilientStore wraps inner
func NewResilientStore(inner ports.EntryStore, config ResilienceConfig, metrics observability.Recorder, logger *zap.Logger) *ResilientStore {
	s := &ResilientStore{
		inner:   inner,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Timeout:     config.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Storage circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Rejected input is not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || !pkgerrors.IsStorageUnavailable(err)
		},
	})
	return s
}

// AppendEntry implements ports.EntryStore
func (s *ResilientStore) AppendEntry(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate, text string) (ports.AppendResult, error) {
	out, err := s.execute(ctx, "append_entry", func(ctx context.Context) (interface{}, error) {
		return s.inner.AppendEntry(ctx, userID, date, text)
	})
	if err != nil {
		return ports.AppendResult{}, err
	}
	return out.(ports.AppendResult), nil
}

// GetEntries implements ports.EntryStore
func (s *ResilientStore) GetEntries(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate) ([]string, error) {
	out, err := s.execute(ctx, "get_entries", func(ctx context.Context) (interface{}, error) {
		return s.inner.GetEntries(ctx, userID, date)
	})
	if err != nil {
		return nil, err
	}
	entries, _ := out.([]string)
	if entries == nil {
		entries = []string{}
	}
	return entries, nil
}

// Ping implements ports.EntryStore. It bypasses the breaker so readiness
// reflects the engine itself.
func (s *ResilientStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	err := s.classify("ping", s.inner.Ping(ctx))
	s.metrics.StoreOperation("ping", time.Since(start), err)
	return err
}

// Close implements ports.EntryStore
func (s *ResilientStore) Close() error {
	return s.inner.Close()
}

// State reports the breaker state, for diagnostics
func (s *ResilientStore) State() gobreaker.State {
	return s.breaker.State()
}

func (s *ResilientStore) execute(ctx context.Context, op string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	start := time.Now()

	out, err := s.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()

		out, err := fn(callCtx)
		return out, s.classify(op, err)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = pkgerrors.NewStorageUnavailableError(op, err)
	}

	s.metrics.StoreOperation(op, time.Since(start), err)
	if err != nil {
		s.logger.Debug("Storage operation failed",
			zap.String("operation", op),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	}
	return out, err
}

// classify keeps typed application errors and reports anything else as an outage
func (s *ResilientStore) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !pkgerrors.IsStorageUnavailable(err) {
		return pkgerrors.NewStorageUnavailableError(op, err)
	}
	if pkgerrors.IsAppError(err) {
		return err
	}
	return pkgerrors.NewStorageUnavailableError(op, err)
}

var _ ports.EntryStore = (*ResilientStore)(nil)
