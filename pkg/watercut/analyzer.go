// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package watercut

import (
	"context"
	"errors"
	"log"
	"time"
)

// SampleInterval is the period of CaptureSample
const SampleInterval = time.Second

// ErrStopped is returned when the analyzer is no longer running
var ErrStopped = errors.New("analyzer stopped")

// Cycle is the outcome of one Poll
type Cycle struct {
	Telemetry
	Err error
}

type op struct {
	fn   func(*Bank)
	done chan struct{}
}

// Analyzer owns a Bank and runs every access to it on one goroutine:
// captures become Poll cycles, a ticker drives CaptureSample and Do runs
// closures between them.
type Analyzer struct {
	bank   *Bank
	logger *log.Logger

	captures chan Capture
	ops      chan op
	cycles   chan Cycle
	saves    chan struct{}
	stopped  chan struct{}

	interval time.Duration
}

// NewAnalyzer creates an analyzer for a bank. logger may be nil.
func NewAnalyzer(b *Bank, logger *log.Logger) *Analyzer {
	return &Analyzer{
		bank:     b,
		logger:   logger,
		captures: make(chan Capture, 4),
		ops:      make(chan op),
		cycles:   make(chan Cycle, 16),
		saves:    make(chan struct{}, 1),
		stopped:  make(chan struct{}),
		interval: SampleInterval,
	}
}

// SetSampleInterval changes the CaptureSample period. Call before Run.
func (a *Analyzer) SetSampleInterval(d time.Duration) {
	if d > 0 {
		a.interval = d
	}
}

func (a *Analyzer) logf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}

// Cycles delivers the result of every Poll. Results are dropped while the
// channel is full.
func (a *Analyzer) Cycles() <-chan Cycle {
	return a.cycles
}

// Saves signals that the bank asked to be persisted
func (a *Analyzer) Saves() <-chan struct{} {
	return a.saves
}

// Run processes captures, samples and closures until ctx is done
func (a *Analyzer) Run(ctx context.Context) error {
	defer close(a.stopped)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case c := <-a.captures:
			oil := a.bank.OilPhase
			err := a.bank.Poll(c)
			if err != nil && !failing {
				a.logf("cycle failed: %v", err)
			} else if err == nil && failing {
				a.logf("cycle recovered")
			}
			failing = err != nil
			if oil != a.bank.OilPhase {
				a.logf("phase committed: %s", phaseOf(a.bank.OilPhase))
			}

			select {
			case a.cycles <- Cycle{Telemetry: a.bank.Telemetry(), Err: err}:
			default:
			}

		case now := <-ticker.C:
			a.bank.CaptureSample(now)

		case o := <-a.ops:
			o.fn(a.bank)
			close(o.done)
		}

		if a.bank.TakeSaveRequest() {
			a.logf("save requested")
			select {
			case a.saves <- struct{}{}:
			default:
			}
		}
	}
}

func phaseOf(oil bool) Phase {
	if oil {
		return PhaseOil
	}
	return PhaseWater
}

// Submit queues a capture for the next cycle
func (a *Analyzer) Submit(ctx context.Context, c Capture) error {
	select {
	case a.captures <- c:
		return nil
	case <-a.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the analyzer goroutine and waits for it to finish
func (a *Analyzer) Do(ctx context.Context, fn func(*Bank)) error {
	o := op{fn: fn, done: make(chan struct{})}
	select {
	case a.ops <- o:
	case <-a.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-o.done:
		return nil
	case <-a.stopped:
		return ErrStopped
	}
}
