// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the zstandard frame magic number used to sniff compressed
// sessions on the input side.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Server exposes a Dispatcher over a byte-stream transport: one Arrow IPC
// stream per request, one per response, in lockstep.
type Server struct {
	dispatcher       *Dispatcher
	logger           *slog.Logger
	compressionLevel int
}

// NewServer creates a wire server over the given dispatcher.
func NewServer(d *Dispatcher) *Server {
	return &Server{
		dispatcher: d,
		logger:     slog.Default(),
	}
}

// SetLogger replaces the server's structured logger.
func (s *Server) SetLogger(l *slog.Logger) { s.logger = l }

// SetCompressionLevel enables zstd session compression of the response
// stream. Level 0 disables it; levels 1-4 map to zstd's fastest through best
// presets. Compressed input is detected automatically regardless of this
// setting.
func (s *Server) SetCompressionLevel(level int) {
	if level < 0 {
		level = 0
	}
	if level > 4 {
		level = 4
	}
	s.compressionLevel = level
}

// RunStdio runs the serve loop on stdin/stdout. If either is connected to a
// terminal, a warning is printed to stderr.
func (s *Server) RunStdio() {
	// Ignore SIGPIPE so writes to closed pipes return errors instead of
	// killing the process.
	signal.Ignore(syscall.SIGPIPE)

	if isTerminal(os.Stdin) || isTerminal(os.Stdout) {
		fmt.Fprintln(os.Stderr,
			"WARNING: This process communicates via Arrow IPC on stdin/stdout "+
				"and is not intended to be run interactively.\n"+
				"It should be launched as a subprocess by an invocation client.")
	}
	s.Serve(os.Stdin, os.Stdout)
}

// isTerminal reports whether f is connected to a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Serve runs the serve loop on the given reader/writer pair.
func (s *Server) Serve(r io.Reader, w io.Writer) {
	s.ServeWithContext(context.Background(), r, w)
}

// ServeWithContext runs the serve loop on the given reader/writer pair with a
// context. Returning drains nothing: the caller owns transport shutdown.
func (s *Server) ServeWithContext(ctx context.Context, r io.Reader, w io.Writer) {
	br := bufio.NewReader(r)
	var in io.Reader = br
	if magic, err := br.Peek(len(zstdMagic)); err == nil && bytes.Equal(magic, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			s.logger.Error("opening compressed session", "err", err)
			return
		}
		defer zr.Close()
		in = zr
	}

	var out io.Writer = w
	var flush func() error
	if s.compressionLevel > 0 {
		zw, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.EncoderLevel(s.compressionLevel)))
		if err != nil {
			s.logger.Error("opening compressed response stream", "err", err)
			return
		}
		defer zw.Close()
		out = zw
		flush = zw.Flush
	}

	for {
		err := s.serveOne(ctx, in, out)
		if err == nil && flush != nil {
			err = flush()
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			if !isTransportClosed(err) {
				s.logger.Error("serve loop error", "err", err)
			}
			return
		}
	}
}

// serveOne handles one complete request-response cycle.
func (s *Server) serveOne(ctx context.Context, r io.Reader, w io.Writer) error {
	req, err := ReadRequest(r)
	if err != nil {
		if err == io.EOF {
			return io.EOF
		}
		var fe *FunctionError
		if errors.As(err, &fe) {
			_ = WriteErrorResponse(w, nil, fe, "")
			return nil // protocol fault, keep serving
		}
		return err // transport error, stop serving
	}

	// Introspection short-circuits the pipeline.
	if req.FunctionID == DescribeFunction {
		return s.serveDescribe(w, req)
	}

	execReq := ExecuteRequest{
		FunctionID:        req.FunctionID,
		Parameters:        req.Parameters,
		SchemaVersion:     req.SchemaVersion,
		CallingPackage:    req.CallingPackage,
		RequestID:         req.RequestID,
		LogLevel:          LogLevel(req.LogLevel),
		TransportMetadata: req.Metadata,
	}
	if execReq.LogLevel == "" {
		execReq.LogLevel = LogTrace // default: record all, caller filters
	}

	info := s.dispatcher.dispatchInfo(execReq)
	stats := &CallStatistics{}
	stats.RecordInput(req.NumRows, req.BufferBytes)

	hctx, token, hookActive := s.dispatcher.startHook(ctx, info)
	resp, logs, dispatchErr := s.dispatcher.run(hctx, execReq)

	var transportErr error
	if dispatchErr != nil {
		transportErr = WriteErrorResponse(w, logs, asWireError(dispatchErr), req.RequestID)
	} else if batch, err := MarshalData(resp); err != nil {
		fe := NewFunctionError(ErrorSystemUnknown, "encoding response: %v", err)
		dispatchErr = fe
		transportErr = WriteErrorResponse(w, logs, fe, req.RequestID)
	} else {
		stats.RecordOutput(batch.NumRows(), batchBufferSize(batch))
		transportErr = WriteResponseBatch(w, logs, batch, req.RequestID)
		batch.Release()
	}

	if hookActive {
		s.dispatcher.endHook(hctx, token, info, stats, dispatchErr)
	}
	return transportErr
}

// isTransportClosed returns true for errors that indicate the transport was
// closed normally.
func isTransportClosed(err error) bool {
	if err == io.EOF {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF")
}
