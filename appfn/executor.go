// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"context"
	"errors"
	"sync"
)

// ErrExecutorClosed is returned by Submit after the executor shut down.
var ErrExecutorClosed = errors.New("appfn: executor is closed")

// SerialExecutor runs submitted tasks one at a time on a single dedicated
// goroutine. Handlers are invoked through it so that, like their platform
// counterparts, they never observe two invocations running concurrently and
// can keep unsynchronized state.
type SerialExecutor struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewSerialExecutor starts the executor goroutine. buffer is the number of
// tasks that can be queued before Submit blocks.
func NewSerialExecutor(buffer int) *SerialExecutor {
	e := &SerialExecutor{
		tasks: make(chan func(), buffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *SerialExecutor) loop() {
	defer close(e.done)
	for {
		select {
		case task := <-e.tasks:
			task()
		case <-e.quit:
			// Drain tasks already accepted so no submitted work is dropped.
			for {
				select {
				case task := <-e.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit queues a task and returns once it is accepted. It fails when ctx is
// cancelled first or the executor is closed.
func (e *SerialExecutor) Submit(ctx context.Context, task func()) error {
	select {
	case <-e.quit:
		return ErrExecutorClosed
	default:
	}
	select {
	case e.tasks <- task:
		return nil
	case <-e.quit:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run queues a task and blocks until it finished running, or until ctx is
// cancelled. A cancelled ctx abandons the wait; the task may still run.
func (e *SerialExecutor) Run(ctx context.Context, task func()) error {
	ran := make(chan struct{})
	err := e.Submit(ctx, func() {
		defer close(ran)
		task()
	})
	if err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, runs what was already queued and returns after
// the executor goroutine exited. Safe to call more than once.
func (e *SerialExecutor) Close() {
	e.once.Do(func() { close(e.quit) })
	<-e.done
}
