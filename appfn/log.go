// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

// LogLevel is the severity of a caller-directed log message. Handlers emit
// messages through [CallContext.ClientLog]; the caller names the minimum
// level it wants back in the request metadata, and anything below it is
// dropped before crossing the process boundary.
type LogLevel string

const (
	// LogException marks the failure that terminated the invocation. Error
	// batches carry this level alongside the numeric error code.
	LogException LogLevel = "EXCEPTION"
	// LogError is a recoverable failure inside the handler.
	LogError LogLevel = "ERROR"
	// LogWarn flags a condition the caller may want to surface.
	LogWarn LogLevel = "WARN"
	// LogInfo is routine invocation progress.
	LogInfo LogLevel = "INFO"
	// LogDebug is diagnostic detail for the calling developer.
	LogDebug LogLevel = "DEBUG"
	// LogTrace is the least severe level; requesting it returns everything.
	LogTrace LogLevel = "TRACE"
)

// logLevelPriority orders levels for filtering; lower is more severe.
func logLevelPriority(level LogLevel) int {
	switch level {
	case LogException:
		return 0
	case LogError:
		return 1
	case LogWarn:
		return 2
	case LogInfo:
		return 3
	case LogDebug:
		return 4
	case LogTrace:
		return 5
	default:
		return 6
	}
}

// KV is one structured extra attached to a caller-directed log message.
type KV struct {
	Key   string
	Value string
}

// LogMessage is a caller-directed log entry. On the wire each message rides
// as a zero-row batch ahead of the result, its level, text and extras in the
// batch custom metadata.
type LogMessage struct {
	Level   LogLevel
	Message string
	Extras  map[string]string
}
