// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

// Package appfn implements a cross-process function-invocation data layer:
// dynamically typed data containers, recursive type metadata, bidirectional
// schema translation, and a cancellable dispatch pipeline.
//
// # Data containers
//
// [Data] is the immutable key/value container that carries parameters and
// return values across the invocation boundary. Each key holds exactly one
// value of one [Kind]; containers are built with [DataBuilder] and read with
// fail-fast typed getters. On the wire a container is a one-row Arrow
// RecordBatch whose custom metadata carries the control plane: function id,
// request id, log messages, and error information.
//
// # Metadata
//
// [FunctionMetadata] describes one callable function: its id, availability
// default, declared parameter and response shapes ([DataType]), the shared
// [Components] table for recursive shapes, and the published contract
// identity ([SchemaIdentity]) it implements. Metadata is produced by
// build-time tooling, loaded via [LoadInventory], and held read-only for the
// process lifetime.
//
// # Translation
//
// When a published contract evolves, callers pinned to an older schema
// version keep working: a [Translator] registered in a [TranslatorRegistry]
// upgrades legacy-shaped requests to the canonical shape before decoding and
// downgrades canonical responses afterwards. Selection is by contract
// identity and version; canonical-version callers bypass translation
// entirely.
//
// # Dispatch
//
// [Dispatcher] runs the invocation pipeline: resolve the function id,
// translate, decode against the declared shapes, invoke the [Handler] on a
// serial executor, encode, translate back, and deliver exactly one outcome
// per request. Failures map onto a numeric, forward-compatible error
// taxonomy ([ErrorCode]); untyped handler failures never leak internals
// across the boundary unless debug errors are enabled.
//
// # Transport
//
// [Server] exposes a dispatcher over a byte-stream transport (typically
// stdin/stdout via [Server.RunStdio]): one Arrow IPC stream per request and
// response, optional zstd session compression, and a reserved
// [DescribeFunction] id for inventory introspection.
package appfn
