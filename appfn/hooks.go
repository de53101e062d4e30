// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// DispatchHook provides observability callpoints around function dispatch.
// Implementations must be safe for concurrent use; requests dispatch on
// independent goroutines.
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by OnDispatchStart and passed back to
// OnDispatchEnd. Only meaningful to the DispatchHook that created it.
type HookToken interface{}

// DispatchInfo carries function metadata passed to hooks.
type DispatchInfo struct {
	FunctionID        string            // Function identifier being invoked
	Schema            string            // Published contract identity, "" if none
	CallingPackage    string            // Requesting application identity
	RequestID         string            // Request identifier
	Translated        bool              // Whether a schema translator ran for this call
	TransportMetadata map[string]string // Transport-level metadata (IPC custom metadata)
}

// CallStatistics holds per-call I/O counters.
type CallStatistics struct {
	InputBatches  int64
	OutputBatches int64
	InputRows     int64
	OutputRows    int64
	InputBytes    int64
	OutputBytes   int64
}

// RecordInput records one input batch with the given row count and buffer size.
func (s *CallStatistics) RecordInput(numRows, bufferBytes int64) {
	s.InputBatches++
	s.InputRows += numRows
	s.InputBytes += bufferBytes
}

// RecordOutput records one output batch with the given row count and buffer size.
func (s *CallStatistics) RecordOutput(numRows, bufferBytes int64) {
	s.OutputBatches++
	s.OutputRows += numRows
	s.OutputBytes += bufferBytes
}

// batchBufferSize returns the total top-level buffer size in bytes across all
// columns in a record batch.
func batchBufferSize(batch arrow.RecordBatch) int64 {
	var total int64
	for i := int64(0); i < batch.NumCols(); i++ {
		col := batch.Column(int(i))
		for _, buf := range col.Data().Buffers() {
			if buf != nil {
				total += int64(buf.Len())
			}
		}
	}
	return total
}
