// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package migration

import (
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/nxentra/ledgerd/internal/logging"
	"github.com/nxentra/ledgerd/internal/metrics"
)

// targetBreaker guards one migration target handle. Opening a DEDICATED
// target's database file (and the import step's writes against it) is the
// one dependency in an otherwise in-process migration pipeline that can go
// slow or fail repeatedly; a flaky target should trip the breaker rather
// than let prepare-target or import retry into it without end.
type targetBreaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

func newTargetBreaker(handle string) *targetBreaker {
	metrics.CircuitBreakerStateValue(handle).Set(0)
	name := "migration-target:" + handle
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && counts.TotalFailures >= 3
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).
				Msg("migration target circuit breaker state change")
			metrics.CircuitBreakerStateValue(handle).Set(stateToFloat(to))
		},
	})
	return &targetBreaker{cb: cb, name: handle}
}

func (b *targetBreaker) run(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) { return nil, fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("target handle %q circuit open: %w", b.name, err)
	}
	return err
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
