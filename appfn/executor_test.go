// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialExecutor_RunsInOrder(t *testing.T) {
	e := NewSerialExecutor(8)
	defer e.Close()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, e.Run(context.Background(), func() {
			got = append(got, i)
		}))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestSerialExecutor_NeverConcurrent(t *testing.T) {
	e := NewSerialExecutor(8)
	defer e.Close()

	var active, maxActive int32
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			_ = e.Run(context.Background(), func() {
				n := atomic.AddInt32(&active, 1)
				if n > atomic.LoadInt32(&maxActive) {
					atomic.StoreInt32(&maxActive, n)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestSerialExecutor_RunAbandonedOnCancel(t *testing.T) {
	e := NewSerialExecutor(1)
	defer e.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	go e.Run(context.Background(), func() {
		close(started)
		<-block
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Run(ctx, func() {})
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
}

func TestSerialExecutor_CloseDrainsAndRejects(t *testing.T) {
	e := NewSerialExecutor(8)

	var ran atomic.Bool
	require.NoError(t, e.Submit(context.Background(), func() { ran.Store(true) }))

	e.Close()
	e.Close() // idempotent

	assert.True(t, ran.Load())
	assert.ErrorIs(t, e.Submit(context.Background(), func() {}), ErrExecutorClosed)
	assert.ErrorIs(t, e.Run(context.Background(), func() {}), ErrExecutorClosed)
}
