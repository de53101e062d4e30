// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Well-known metadata keys used on Arrow IPC RecordBatch messages.
const (
	MetaFunction       = "appfn.function"
	MetaRequestVersion = "appfn.request_version"
	MetaRequestID      = "appfn.request_id"
	MetaSchemaVersion  = "appfn.schema_version"
	MetaCallingPackage = "appfn.calling_package"
	MetaLogLevel       = "appfn.log_level"
	MetaLogMessage     = "appfn.log_message"
	MetaLogExtra       = "appfn.log_extra"
	MetaErrorCode      = "appfn.error_code"

	// metaQualifiedName carries a container's logical type name in schema
	// metadata.
	metaQualifiedName = "appfn.qualified_name"
	// metaFieldKind distinguishes nested containers from raw bytes on
	// binary-typed fields.
	metaFieldKind = "appfn.kind"

	ProtocolVersion = "1"
)

// Request represents a parsed invocation request from the wire.
type Request struct {
	FunctionID     string
	Version        string
	RequestID      string
	SchemaVersion  int64
	CallingPackage string
	LogLevel       string
	Parameters     *Data
	Metadata       map[string]string

	// Wire-level counters for dispatch statistics.
	NumRows     int64
	BufferBytes int64
}

// ReadRequest reads one complete IPC stream from the reader and extracts the
// function id, protocol version and the parameter container from the first
// batch.
func ReadRequest(r io.Reader) (*Request, error) {
	reader, err := ipc.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading request IPC stream: %w", err)
	}
	defer reader.Release()

	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return nil, fmt.Errorf("reading request batch: %w", err)
		}
		return nil, io.EOF
	}

	batch := reader.RecordBatch()

	var meta arrow.Metadata
	if rb, ok := batch.(arrow.RecordBatchWithMetadata); ok {
		meta = rb.Metadata()
	}

	function, ok := meta.GetValue(MetaFunction)
	if !ok {
		return nil, NewFunctionError(ErrorInvalidArgument,
			"missing %q in request batch custom_metadata", MetaFunction)
	}

	version, ok := meta.GetValue(MetaRequestVersion)
	if !ok {
		return nil, NewFunctionError(ErrorInvalidArgument,
			"missing %q in request batch custom_metadata", MetaRequestVersion)
	}
	if version != ProtocolVersion {
		return nil, NewFunctionError(ErrorInvalidArgument,
			"unsupported request version %q, expected %q", version, ProtocolVersion)
	}

	if batch.Schema().NumFields() > 0 && batch.NumRows() != 1 {
		return nil, NewFunctionError(ErrorInvalidArgument,
			"expected 1 row in request batch, got %d", batch.NumRows())
	}

	params, err := UnmarshalData(batch)
	if err != nil {
		return nil, NewFunctionError(ErrorInvalidArgument, "decoding parameter batch: %v", err)
	}

	requestID, _ := meta.GetValue(MetaRequestID)
	callingPackage, _ := meta.GetValue(MetaCallingPackage)
	logLevel, _ := meta.GetValue(MetaLogLevel)

	var schemaVersion int64
	if sv, ok := meta.GetValue(MetaSchemaVersion); ok {
		schemaVersion, err = strconv.ParseInt(sv, 10, 64)
		if err != nil {
			return nil, NewFunctionError(ErrorInvalidArgument,
				"malformed %q value %q", MetaSchemaVersion, sv)
		}
	}

	// Capture counters before the drain invalidates the batch.
	numRows := batch.NumRows()
	bufferBytes := batchBufferSize(batch)

	// Drain remaining batches (read to EOS).
	for reader.Next() {
	}

	metaMap := make(map[string]string)
	for i := range meta.Len() {
		metaMap[meta.Keys()[i]] = meta.Values()[i]
	}

	return &Request{
		FunctionID:     function,
		Version:        version,
		RequestID:      requestID,
		SchemaVersion:  schemaVersion,
		CallingPackage: callingPackage,
		LogLevel:       logLevel,
		Parameters:     params,
		Metadata:       metaMap,
		NumRows:        numRows,
		BufferBytes:    bufferBytes,
	}, nil
}

// --- Data <-> Arrow ---
//
// A container marshals to a one-row batch with one column per field, keys in
// sorted order. Nested containers ride as IPC-encoded binary columns tagged
// with field metadata so they can be told apart from raw byte fields.

func fieldArrowType(v fieldValue) (arrow.DataType, bool, error) {
	switch v.kind {
	case KindBool:
		return arrow.FixedWidthTypes.Boolean, false, nil
	case KindLong:
		return arrow.PrimitiveTypes.Int64, false, nil
	case KindDouble:
		return arrow.PrimitiveTypes.Float64, false, nil
	case KindString:
		return arrow.BinaryTypes.String, false, nil
	case KindBytes:
		return arrow.BinaryTypes.Binary, false, nil
	case KindData:
		return arrow.BinaryTypes.Binary, true, nil
	case KindBoolList:
		return arrow.ListOf(arrow.FixedWidthTypes.Boolean), false, nil
	case KindLongList:
		return arrow.ListOf(arrow.PrimitiveTypes.Int64), false, nil
	case KindDoubleList:
		return arrow.ListOf(arrow.PrimitiveTypes.Float64), false, nil
	case KindStringList:
		return arrow.ListOf(arrow.BinaryTypes.String), false, nil
	case KindDataList:
		return arrow.ListOf(arrow.BinaryTypes.Binary), true, nil
	default:
		return nil, false, fmt.Errorf("appfn: unsupported field kind %s", v.kind)
	}
}

// MarshalData converts a container to a one-row Arrow batch. The caller owns
// the returned batch and must Release it.
func MarshalData(d *Data) (arrow.RecordBatch, error) {
	if d == nil {
		d = Empty
	}
	mem := memory.NewGoAllocator()
	keys := d.Keys()

	fields := make([]arrow.Field, 0, len(keys))
	cols := make([]arrow.Array, 0, len(keys))
	release := func() {
		for _, c := range cols {
			c.Release()
		}
	}

	for _, k := range keys {
		v := d.fields[k]
		dt, nested, err := fieldArrowType(v)
		if err != nil {
			release()
			return nil, err
		}
		field := arrow.Field{Name: k, Type: dt}
		if nested {
			field.Metadata = arrow.NewMetadata([]string{metaFieldKind}, []string{"data"})
		}
		arr, err := buildFieldArray(mem, dt, v)
		if err != nil {
			release()
			return nil, fmt.Errorf("appfn: field %q: %w", k, err)
		}
		fields = append(fields, field)
		cols = append(cols, arr)
	}

	var schemaMeta arrow.Metadata
	if d.qualifiedName != "" {
		schemaMeta = arrow.NewMetadata([]string{metaQualifiedName}, []string{d.qualifiedName})
	}
	schema := arrow.NewSchema(fields, &schemaMeta)

	rows := int64(1)
	if len(cols) == 0 {
		rows = 0
	}
	batch := array.NewRecordBatch(schema, cols, rows)
	release()
	return batch, nil
}

func buildFieldArray(mem memory.Allocator, dt arrow.DataType, v fieldValue) (arrow.Array, error) {
	switch v.kind {
	case KindBool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.Append(v.b)
		return b.NewArray(), nil
	case KindLong:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.Append(v.i)
		return b.NewArray(), nil
	case KindDouble:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.Append(v.f)
		return b.NewArray(), nil
	case KindString:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.Append(v.s)
		return b.NewArray(), nil
	case KindBytes:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		defer b.Release()
		b.Append(v.raw)
		return b.NewArray(), nil
	case KindData:
		payload, err := dataToIPC(v.data)
		if err != nil {
			return nil, err
		}
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		defer b.Release()
		b.Append(payload)
		return b.NewArray(), nil
	case KindBoolList:
		lb := array.NewListBuilder(mem, arrow.FixedWidthTypes.Boolean)
		defer lb.Release()
		lb.Append(true)
		vb := lb.ValueBuilder().(*array.BooleanBuilder)
		for _, e := range v.bools {
			vb.Append(e)
		}
		return lb.NewArray(), nil
	case KindLongList:
		lb := array.NewListBuilder(mem, arrow.PrimitiveTypes.Int64)
		defer lb.Release()
		lb.Append(true)
		vb := lb.ValueBuilder().(*array.Int64Builder)
		for _, e := range v.longs {
			vb.Append(e)
		}
		return lb.NewArray(), nil
	case KindDoubleList:
		lb := array.NewListBuilder(mem, arrow.PrimitiveTypes.Float64)
		defer lb.Release()
		lb.Append(true)
		vb := lb.ValueBuilder().(*array.Float64Builder)
		for _, e := range v.doubles {
			vb.Append(e)
		}
		return lb.NewArray(), nil
	case KindStringList:
		lb := array.NewListBuilder(mem, arrow.BinaryTypes.String)
		defer lb.Release()
		lb.Append(true)
		vb := lb.ValueBuilder().(*array.StringBuilder)
		for _, e := range v.strs {
			vb.Append(e)
		}
		return lb.NewArray(), nil
	case KindDataList:
		lb := array.NewListBuilder(mem, arrow.BinaryTypes.Binary)
		defer lb.Release()
		lb.Append(true)
		vb := lb.ValueBuilder().(*array.BinaryBuilder)
		for _, e := range v.datas {
			payload, err := dataToIPC(e)
			if err != nil {
				return nil, err
			}
			vb.Append(payload)
		}
		return lb.NewArray(), nil
	default:
		return nil, fmt.Errorf("unsupported field kind %s", v.kind)
	}
}

// UnmarshalData converts a one-row batch back into a container.
func UnmarshalData(batch arrow.RecordBatch) (*Data, error) {
	schema := batch.Schema()
	qualifiedName, _ := schema.Metadata().GetValue(metaQualifiedName)
	b := NewDataBuilder(qualifiedName)

	if schema.NumFields() == 0 {
		return b.Build(), nil
	}
	if batch.NumRows() != 1 {
		return nil, fmt.Errorf("appfn: expected 1 row, got %d", batch.NumRows())
	}

	for i := 0; i < schema.NumFields(); i++ {
		field := schema.Field(i)
		col := batch.Column(i)
		kindTag, _ := field.Metadata.GetValue(metaFieldKind)
		if err := decodeColumn(b, field.Name, col, kindTag == "data"); err != nil {
			return nil, fmt.Errorf("appfn: field %q: %w", field.Name, err)
		}
	}
	return b.Build(), nil
}

func decodeColumn(b *DataBuilder, name string, col arrow.Array, nested bool) error {
	switch arr := col.(type) {
	case *array.Boolean:
		b.SetBool(name, arr.Value(0))
	case *array.Int64:
		b.SetLong(name, arr.Value(0))
	case *array.Float64:
		b.SetDouble(name, arr.Value(0))
	case *array.String:
		b.SetString(name, arr.Value(0))
	case *array.Binary:
		if nested {
			d, err := dataFromIPC(arr.Value(0))
			if err != nil {
				return err
			}
			b.SetData(name, d)
		} else {
			b.SetBytes(name, arr.Value(0))
		}
	case *array.List:
		return decodeListColumn(b, name, arr, nested)
	default:
		return fmt.Errorf("unsupported column type %s", col.DataType())
	}
	return nil
}

func decodeListColumn(b *DataBuilder, name string, arr *array.List, nested bool) error {
	start, end := arr.ValueOffsets(0)
	values := arr.ListValues()
	n := int(end - start)
	off := int(start)

	switch elems := values.(type) {
	case *array.Boolean:
		out := make([]bool, n)
		for i := range out {
			out[i] = elems.Value(off + i)
		}
		b.SetBoolList(name, out)
	case *array.Int64:
		out := make([]int64, n)
		for i := range out {
			out[i] = elems.Value(off + i)
		}
		b.SetLongList(name, out)
	case *array.Float64:
		out := make([]float64, n)
		for i := range out {
			out[i] = elems.Value(off + i)
		}
		b.SetDoubleList(name, out)
	case *array.String:
		out := make([]string, n)
		for i := range out {
			out[i] = elems.Value(off + i)
		}
		b.SetStringList(name, out)
	case *array.Binary:
		if !nested {
			return fmt.Errorf("binary lists must carry nested containers")
		}
		out := make([]*Data, n)
		for i := range out {
			d, err := dataFromIPC(elems.Value(off + i))
			if err != nil {
				return err
			}
			out[i] = d
		}
		b.SetDataList(name, out)
	default:
		return fmt.Errorf("unsupported list element type %s", values.DataType())
	}
	return nil
}

// dataToIPC renders a nested container as a standalone IPC stream.
func dataToIPC(d *Data) ([]byte, error) {
	batch, err := MarshalData(d)
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(batch.Schema()))
	if err := w.Write(batch); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func dataFromIPC(payload []byte) (*Data, error) {
	reader, err := ipc.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("reading nested container IPC: %w", err)
	}
	defer reader.Release()

	if !reader.Next() {
		// A schema-only stream is a legitimate empty container.
		if err := reader.Err(); err != nil {
			return nil, err
		}
		return UnmarshalDataSchemaOnly(reader.Schema()), nil
	}
	return UnmarshalData(reader.RecordBatch())
}

// UnmarshalDataSchemaOnly recovers an empty container from a schema with no
// batches, preserving the qualified name.
func UnmarshalDataSchemaOnly(schema *arrow.Schema) *Data {
	qualifiedName, _ := schema.Metadata().GetValue(metaQualifiedName)
	return NewDataBuilder(qualifiedName).Build()
}

// --- Response framing ---

// emptyBatch creates a zero-row batch with the given schema.
func emptyBatch(schema *arrow.Schema) arrow.RecordBatch {
	mem := memory.NewGoAllocator()
	cols := make([]arrow.Array, schema.NumFields())
	for i, f := range schema.Fields() {
		cols[i] = makeEmptyArray(mem, f.Type)
	}
	batch := array.NewRecordBatch(schema, cols, 0)
	for _, c := range cols {
		c.Release()
	}
	return batch
}

// makeEmptyArray creates a zero-length array of the given type.
func makeEmptyArray(mem memory.Allocator, dt arrow.DataType) arrow.Array {
	builder := array.NewBuilder(mem, dt)
	defer builder.Release()
	return builder.NewArray()
}

// writeLogBatch writes a zero-row batch with log metadata.
func writeLogBatch(w *ipc.Writer, schema *arrow.Schema, msg LogMessage, requestID string) error {
	keys := []string{MetaLogLevel, MetaLogMessage}
	vals := []string{string(msg.Level), msg.Message}

	if len(msg.Extras) > 0 {
		extraJSON, err := json.Marshal(msg.Extras)
		if err != nil {
			extraJSON = []byte(`{}`)
		}
		keys = append(keys, MetaLogExtra)
		vals = append(vals, string(extraJSON))
	}
	if requestID != "" {
		keys = append(keys, MetaRequestID)
		vals = append(vals, requestID)
	}

	meta := arrow.NewMetadata(keys, vals)
	batch := emptyBatch(schema)
	defer batch.Release()

	batchWithMeta := array.NewRecordBatchWithMetadata(schema, batch.Columns(), 0, meta)
	defer batchWithMeta.Release()

	return w.Write(batchWithMeta)
}

// writeErrorBatch writes a zero-row batch carrying a typed error: the numeric
// code in its own key plus EXCEPTION-level log metadata.
func writeErrorBatch(w *ipc.Writer, schema *arrow.Schema, fe *FunctionError, requestID string) error {
	keys := []string{MetaErrorCode, MetaLogLevel, MetaLogMessage}
	vals := []string{strconv.Itoa(int(fe.Code)), string(LogException), fe.Message}

	if requestID != "" {
		keys = append(keys, MetaRequestID)
		vals = append(vals, requestID)
	}

	meta := arrow.NewMetadata(keys, vals)
	batch := emptyBatch(schema)
	defer batch.Release()

	batchWithMeta := array.NewRecordBatchWithMetadata(schema, batch.Columns(), 0, meta)
	defer batchWithMeta.Release()

	return w.Write(batchWithMeta)
}

// WriteResponse writes a complete IPC stream: schema, log batches, then the
// one-row result batch.
func WriteResponse(w io.Writer, logs []LogMessage, result *Data, requestID string) error {
	batch, err := MarshalData(result)
	if err != nil {
		return fmt.Errorf("encoding response batch: %w", err)
	}
	defer batch.Release()
	return WriteResponseBatch(w, logs, batch, requestID)
}

// WriteResponseBatch writes log batches followed by an already-marshalled
// result batch in one IPC stream.
func WriteResponseBatch(w io.Writer, logs []LogMessage, batch arrow.RecordBatch, requestID string) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(batch.Schema()))
	defer writer.Close()

	for _, logMsg := range logs {
		if err := writeLogBatch(writer, batch.Schema(), logMsg, requestID); err != nil {
			return fmt.Errorf("writing log batch: %w", err)
		}
	}
	return writer.Write(batch)
}

// WriteErrorResponse writes a complete IPC stream containing log batches and
// a single error batch.
func WriteErrorResponse(w io.Writer, logs []LogMessage, fe *FunctionError, requestID string) error {
	schema := arrow.NewSchema(nil, nil)
	writer := ipc.NewWriter(w, ipc.WithSchema(schema))
	defer writer.Close()

	for _, logMsg := range logs {
		if err := writeLogBatch(writer, schema, logMsg, requestID); err != nil {
			return fmt.Errorf("writing log batch: %w", err)
		}
	}
	return writeErrorBatch(writer, schema, fe, requestID)
}

// ParseWireError recovers a typed error from a zero-row error batch's
// metadata. Used by clients and tests.
func ParseWireError(meta arrow.Metadata) (*FunctionError, bool) {
	codeStr, ok := meta.GetValue(MetaErrorCode)
	if !ok {
		return nil, false
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return nil, false
	}
	msg, _ := meta.GetValue(MetaLogMessage)
	return &FunctionError{Code: ErrorCode(code), Message: msg}, true
}
