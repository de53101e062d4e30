// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handler is the unit of application logic behind one function id. It
// receives decoded parameters keyed by name and returns the raw result that
// EncodeResponse shapes into the response container.
//
// Handlers run on the dispatcher's serial executor: no two invocations run
// concurrently, so handler state needs no synchronization.
type Handler func(cc *CallContext, params map[string]any) (any, error)

// ResultCallback receives the outcome of an asynchronous Execute. Exactly one
// of the two methods is invoked, exactly once, even when cancellation races
// with completion.
type ResultCallback interface {
	OnSuccess(response *Data)
	OnError(err *FunctionError)
}

// CallbackFuncs adapts two funcs to ResultCallback. Either func may be nil.
type CallbackFuncs struct {
	Success func(response *Data)
	Error   func(err *FunctionError)
}

func (c CallbackFuncs) OnSuccess(response *Data) {
	if c.Success != nil {
		c.Success(response)
	}
}

func (c CallbackFuncs) OnError(err *FunctionError) {
	if c.Error != nil {
		c.Error(err)
	}
}

// onceCallback guards a ResultCallback so competing outcomes collapse to a
// single delivery.
type onceCallback struct {
	once sync.Once
	cb   ResultCallback
}

func (o *onceCallback) success(response *Data) {
	o.once.Do(func() { o.cb.OnSuccess(response) })
}

func (o *onceCallback) fail(err *FunctionError) {
	o.once.Do(func() { o.cb.OnError(err) })
}

// ExecuteRequest addresses one function invocation.
type ExecuteRequest struct {
	// FunctionID is the stable identifier of the function to invoke.
	FunctionID string
	// Parameters is the parameter container. Nil means no parameters.
	Parameters *Data
	// SchemaVersion is the published contract version the caller targets.
	// Zero means current: the canonical shape, no translation.
	SchemaVersion int64
	// CallingPackage identifies the requesting application as asserted by
	// the transport. Empty for in-process callers.
	CallingPackage string
	// RequestID correlates request and response. Generated when empty.
	RequestID string
	// LogLevel is the minimum severity of caller-directed log messages to
	// deliver. Empty suppresses all.
	LogLevel LogLevel
	// TransportMetadata carries transport-level key/values for hooks.
	TransportMetadata map[string]string
}

// Dispatcher owns the invocation pipeline: it resolves function ids against
// the inventory, applies schema translation, decodes parameters, invokes the
// handler on the serial executor, encodes the result and delivers exactly one
// outcome per request.
//
// Configure it fully before the first Execute; the Set* methods are not
// synchronized against in-flight requests except SetFunctionEnabled and
// ClearFunctionEnabled, which may be called at any time.
type Dispatcher struct {
	inventory   *Inventory
	handlers    map[string]Handler
	translators *TranslatorRegistry
	hook        DispatchHook
	logger      *slog.Logger
	executor    *SerialExecutor
	debugErrors bool

	mu       sync.RWMutex
	enabled  map[string]bool
	shutdown bool

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher over a compiled inventory with no
// handlers bound yet.
func NewDispatcher(inventory *Inventory) *Dispatcher {
	root, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		inventory:   inventory,
		handlers:    make(map[string]Handler),
		translators: NewTranslatorRegistry(),
		logger:      slog.Default(),
		executor:    NewSerialExecutor(16),
		enabled:     make(map[string]bool),
		root:        root,
		cancel:      cancel,
	}
}

// RegisterHandler binds application logic to a function id. The id must exist
// in the inventory and must not be bound already.
func (d *Dispatcher) RegisterHandler(id string, h Handler) error {
	if _, ok := d.inventory.Lookup(id); !ok {
		return fmt.Errorf("appfn: cannot bind handler, function %q is not in the inventory", id)
	}
	if _, dup := d.handlers[id]; dup {
		return fmt.Errorf("appfn: handler for %q registered twice", id)
	}
	d.handlers[id] = h
	return nil
}

// SetTranslators installs the translator registry used for schema upgrades
// and downgrades.
func (d *Dispatcher) SetTranslators(r *TranslatorRegistry) { d.translators = r }

// SetHook installs a dispatch observability hook.
func (d *Dispatcher) SetHook(h DispatchHook) { d.hook = h }

// SetLogger replaces the dispatcher's structured logger.
func (d *Dispatcher) SetLogger(l *slog.Logger) { d.logger = l }

// SetDebugErrors controls whether untyped handler failures carry their
// original message across the boundary. Off by default so handler internals
// never leak to callers.
func (d *Dispatcher) SetDebugErrors(enabled bool) { d.debugErrors = enabled }

// SetFunctionEnabled overrides a function's availability at runtime,
// replacing its metadata default until cleared.
func (d *Dispatcher) SetFunctionEnabled(id string, enabled bool) error {
	if _, ok := d.inventory.Lookup(id); !ok {
		return fmt.Errorf("appfn: cannot override, function %q is not in the inventory", id)
	}
	d.mu.Lock()
	d.enabled[id] = enabled
	d.mu.Unlock()
	return nil
}

// ClearFunctionEnabled removes a runtime availability override so the
// metadata default applies again.
func (d *Dispatcher) ClearFunctionEnabled(id string) {
	d.mu.Lock()
	delete(d.enabled, id)
	d.mu.Unlock()
}

// isEnabled resolves availability: runtime override first, metadata default
// otherwise.
func (d *Dispatcher) isEnabled(md *FunctionMetadata) bool {
	d.mu.RLock()
	override, ok := d.enabled[md.ID]
	d.mu.RUnlock()
	if ok {
		return override
	}
	return md.EnabledByDefault
}

// Inventory returns the dispatcher's compiled inventory.
func (d *Dispatcher) Inventory() *Inventory { return d.inventory }

// Execute runs the invocation pipeline asynchronously and delivers exactly
// one outcome to cb. Cancelling ctx, or shutting the dispatcher down, aborts
// the request and delivers a Cancelled error if no outcome was delivered yet.
func (d *Dispatcher) Execute(ctx context.Context, req ExecuteRequest, cb ResultCallback) {
	once := &onceCallback{cb: cb}

	d.mu.RLock()
	down := d.shutdown
	d.mu.RUnlock()
	if down {
		once.fail(NewFunctionError(ErrorCancelled, "dispatcher is shut down"))
		return
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	rctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(d.root, cancel)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer stop()
		defer cancel()

		info := d.dispatchInfo(req)
		hctx, token, hookActive := d.startHook(rctx, info)
		resp, _, err := d.run(hctx, req)
		if hookActive {
			d.endHook(hctx, token, info, &CallStatistics{}, err)
		}

		if err != nil {
			once.fail(asWireError(err))
			return
		}
		if rctx.Err() != nil {
			once.fail(NewFunctionError(ErrorCancelled, "request cancelled"))
			return
		}
		once.success(resp)
	}()
}

// ExecuteSync runs the pipeline and blocks for the outcome.
func (d *Dispatcher) ExecuteSync(ctx context.Context, req ExecuteRequest) (*Data, error) {
	type outcome struct {
		resp *Data
		err  *FunctionError
	}
	ch := make(chan outcome, 1)
	d.Execute(ctx, req, CallbackFuncs{
		Success: func(resp *Data) { ch <- outcome{resp: resp} },
		Error:   func(err *FunctionError) { ch <- outcome{err: err} },
	})
	o := <-ch
	if o.err != nil {
		return nil, o.err
	}
	return o.resp, nil
}

// Shutdown cancels every in-flight request, waits for them to drain or for
// ctx to expire, and stops the serial executor. The dispatcher accepts no
// requests afterwards.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.shutdown = true
	d.mu.Unlock()
	d.cancel()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	d.executor.Close()
	return nil
}

// dispatchInfo builds the hook-facing description of a request.
func (d *Dispatcher) dispatchInfo(req ExecuteRequest) DispatchInfo {
	info := DispatchInfo{
		FunctionID:        req.FunctionID,
		CallingPackage:    req.CallingPackage,
		RequestID:         req.RequestID,
		TransportMetadata: req.TransportMetadata,
	}
	if md, ok := d.inventory.Lookup(req.FunctionID); ok && md.Schema != nil {
		info.Schema = md.Schema.String()
		info.Translated = d.selectTranslator(md, req.SchemaVersion) != nil
	}
	return info
}

// selectTranslator picks the translator for a caller pinned to an older
// contract version, or nil when the caller's shape is already canonical.
func (d *Dispatcher) selectTranslator(md *FunctionMetadata, callerVersion int64) Translator {
	if md.Schema == nil || callerVersion <= 0 || d.translators == nil {
		return nil
	}
	id := *md.Schema
	id.Version = callerVersion
	t, ok := d.translators.Select(id)
	if !ok {
		return nil
	}
	return t
}

// startHook invokes the dispatch hook's start callpoint, panic-safe.
func (d *Dispatcher) startHook(ctx context.Context, info DispatchInfo) (context.Context, HookToken, bool) {
	if d.hook == nil {
		return ctx, nil, false
	}
	var token HookToken
	active := false
	func() {
		defer func() {
			if rv := recover(); rv != nil {
				d.logger.Error("dispatch hook start panic", "err", rv)
			}
		}()
		var hookCtx context.Context
		hookCtx, token = d.hook.OnDispatchStart(ctx, info)
		if hookCtx != nil {
			ctx = hookCtx
		}
		active = true
	}()
	return ctx, token, active
}

// endHook invokes the dispatch hook's end callpoint, panic-safe.
func (d *Dispatcher) endHook(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			d.logger.Error("dispatch hook end panic", "err", rv)
		}
	}()
	d.hook.OnDispatchEnd(ctx, token, info, stats, err)
}

// run is the invocation pipeline shared by Execute and the wire transport.
// It returns the response container plus any caller-directed log messages the
// handler recorded. Every returned error is a *FunctionError.
func (d *Dispatcher) run(ctx context.Context, req ExecuteRequest) (*Data, []LogMessage, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	// Resolve.
	md, ok := d.inventory.Lookup(req.FunctionID)
	if !ok {
		return nil, nil, NewFunctionError(ErrorFunctionNotFound, "function %q is not registered", req.FunctionID)
	}
	if !d.isEnabled(md) {
		return nil, nil, NewFunctionError(ErrorDisabled, "function %q is disabled", req.FunctionID)
	}
	handler, ok := d.handlers[req.FunctionID]
	if !ok {
		return nil, nil, NewFunctionError(ErrorSystemUnknown, "function %q has no handler bound", req.FunctionID)
	}

	translator := d.selectTranslator(md, req.SchemaVersion)

	resp, logs, err := d.pipeline(ctx, md, handler, translator, req)
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "function invocation failed",
			slog.String("function", req.FunctionID),
			slog.String("request_id", req.RequestID),
			slog.String("error", err.Error()),
		)
	}
	return resp, logs, err
}

func (d *Dispatcher) pipeline(ctx context.Context, md *FunctionMetadata, handler Handler, translator Translator, req ExecuteRequest) (*Data, []LogMessage, error) {
	params := req.Parameters
	if params == nil {
		params = Empty
	}

	// Translate the request up to the canonical shape.
	if translator != nil {
		upgraded, err := translator.UpgradeRequest(params)
		if err != nil {
			var fe *FunctionError
			if errors.As(err, &fe) {
				return nil, nil, fe
			}
			return nil, nil, NewFunctionError(ErrorInvalidArgument, "upgrading request for %s: %v", md.Schema, err)
		}
		params = upgraded
	}

	// Decode against the declared parameter envelope.
	decoded, err := DecodeParameters(md, params)
	if err != nil {
		return nil, nil, err
	}

	cc := &CallContext{
		Ctx:            ctx,
		RequestID:      req.RequestID,
		CallingPackage: req.CallingPackage,
		FunctionID:     req.FunctionID,
		Schema:         md.Schema,
		LogLevel:       req.LogLevel,
	}

	// Invoke on the serial executor so handlers keep single-threaded
	// semantics.
	var (
		result     any
		handlerErr error
	)
	runErr := d.executor.Run(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				handlerErr = fmt.Errorf("handler panic: %v", r)
				d.logger.LogAttrs(ctx, slog.LevelError, "handler panicked",
					slog.String("function", req.FunctionID),
					slog.String("request_id", req.RequestID),
					slog.Any("panic", r),
				)
			}
		}()
		result, handlerErr = handler(cc, decoded)
	})
	logs := cc.drainLogs()
	if runErr != nil {
		return nil, logs, NewFunctionError(ErrorCancelled, "request cancelled")
	}
	if ctx.Err() != nil {
		return nil, logs, NewFunctionError(ErrorCancelled, "request cancelled")
	}
	if handlerErr != nil {
		return nil, logs, d.sanitizeHandlerError(handlerErr)
	}

	// Encode the raw result into the response container.
	resp, err := EncodeResponse(md, result)
	if err != nil {
		return nil, logs, err
	}

	// Translate the response back down to the caller's shape.
	if translator != nil {
		downgraded, err := translator.DowngradeResponse(resp)
		if err != nil {
			return nil, logs, NewFunctionError(ErrorSystemUnknown, "downgrading response for %s: %v", md.Schema, err)
		}
		resp = downgraded
	}
	return resp, logs, nil
}

// sanitizeHandlerError maps a handler failure to the wire taxonomy. Typed
// errors pass through unchanged; anything else collapses to AppUnknown, with
// the original message attached only when debug errors are on.
func (d *Dispatcher) sanitizeHandlerError(err error) *FunctionError {
	var fe *FunctionError
	if errors.As(err, &fe) {
		return fe
	}
	if d.debugErrors {
		return NewFunctionError(ErrorAppUnknown, "%v", err)
	}
	return NewFunctionError(ErrorAppUnknown, "the application encountered an internal failure")
}

// asWireError normalizes any pipeline error to a *FunctionError, folding
// context cancellation into the Cancelled code.
func asWireError(err error) *FunctionError {
	var fe *FunctionError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewFunctionError(ErrorCancelled, "request cancelled")
	}
	return NewFunctionError(ErrorSystemUnknown, "%v", err)
}
