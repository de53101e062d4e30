// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"context"
	"sync"
)

// CallContext provides request-scoped information and logging to function
// handlers. A fresh value is built per request; handlers must not retain it
// past their return.
type CallContext struct {
	// Ctx is the request-scoped context. It is cancelled when the caller
	// abandons the request or the dispatcher shuts down.
	Ctx context.Context
	// RequestID identifies this request, echoed in all response metadata.
	// Generated by the dispatcher when the caller supplies none.
	RequestID string
	// CallingPackage identifies the requesting application as asserted by the
	// transport. Empty for in-process callers.
	CallingPackage string
	// FunctionID is the id of the function being invoked.
	FunctionID string
	// Schema identifies the published contract the caller targeted, or nil.
	Schema *SchemaIdentity
	// LogLevel is the caller-requested minimum log severity. Messages below
	// this level are silently discarded by [CallContext.ClientLog].
	LogLevel LogLevel

	// logs is guarded by mu: a cancelled request drains while the abandoned
	// handler may still be appending.
	mu   sync.Mutex
	logs []LogMessage
}

// ClientLog records a log message that will be delivered to the caller
// alongside the response. The message is only recorded if its level is at or
// above the caller-requested log level; an empty level suppresses all.
func (ctx *CallContext) ClientLog(level LogLevel, msg string, extras ...KV) {
	if ctx.LogLevel == "" || logLevelPriority(level) > logLevelPriority(ctx.LogLevel) {
		return
	}
	logMsg := LogMessage{
		Level:   level,
		Message: msg,
	}
	if len(extras) > 0 {
		logMsg.Extras = make(map[string]string, len(extras))
		for _, kv := range extras {
			logMsg.Extras[kv.Key] = kv.Value
		}
	}
	ctx.mu.Lock()
	ctx.logs = append(ctx.logs, logMsg)
	ctx.mu.Unlock()
}

// drainLogs returns and clears all accumulated log messages.
func (ctx *CallContext) drainLogs() []LogMessage {
	ctx.mu.Lock()
	logs := ctx.logs
	ctx.logs = nil
	ctx.mu.Unlock()
	return logs
}
