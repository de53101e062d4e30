// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"encoding/json"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DescribeFunction is the reserved function id for inventory introspection.
const DescribeFunction = "__describe__"

// Describe metadata keys.
const (
	MetaProtocolName    = "appfn.protocol_name"
	MetaDescribeVersion = "appfn.describe_version"
	DescribeVersion     = "1"
)

// describeSchema is the one-row-per-function introspection batch layout.
var describeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.BinaryTypes.String},
	{Name: "enabled_by_default", Type: &arrow.BooleanType{}},
	{Name: "schema_category", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "schema_name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "schema_version", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "parameters_json", Type: arrow.BinaryTypes.String},
	{Name: "response_json", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "components_json", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// buildDescribeBatch renders the inventory as the introspection batch plus
// response metadata.
func (s *Server) buildDescribeBatch() (arrow.RecordBatch, arrow.Metadata, error) {
	mem := memory.NewGoAllocator()
	inv := s.dispatcher.Inventory()
	ids := inv.IDs()

	idBuilder := array.NewStringBuilder(mem)
	defer idBuilder.Release()

	enabledBuilder := array.NewBooleanBuilder(mem)
	defer enabledBuilder.Release()

	categoryBuilder := array.NewStringBuilder(mem)
	defer categoryBuilder.Release()

	schemaNameBuilder := array.NewStringBuilder(mem)
	defer schemaNameBuilder.Release()

	versionBuilder := array.NewInt64Builder(mem)
	defer versionBuilder.Release()

	parametersBuilder := array.NewStringBuilder(mem)
	defer parametersBuilder.Release()

	responseBuilder := array.NewStringBuilder(mem)
	defer responseBuilder.Release()

	componentsBuilder := array.NewStringBuilder(mem)
	defer componentsBuilder.Release()

	for _, id := range ids {
		md, _ := inv.Lookup(id)

		idBuilder.Append(id)
		enabledBuilder.Append(md.EnabledByDefault)

		if md.Schema != nil {
			categoryBuilder.Append(md.Schema.Category)
			schemaNameBuilder.Append(md.Schema.Name)
			versionBuilder.Append(md.Schema.Version)
		} else {
			categoryBuilder.AppendNull()
			schemaNameBuilder.AppendNull()
			versionBuilder.AppendNull()
		}

		paramsJSON, err := MarshalTypeJSON(md.Parameters)
		if err != nil {
			return nil, arrow.Metadata{}, err
		}
		parametersBuilder.Append(string(paramsJSON))

		if md.Response != nil {
			respJSON, err := MarshalTypeJSON(md.Response)
			if err != nil {
				return nil, arrow.Metadata{}, err
			}
			responseBuilder.Append(string(respJSON))
		} else {
			responseBuilder.AppendNull()
		}

		if len(md.Components) > 0 {
			comps := make(map[string]*typeNode, len(md.Components))
			for name, obj := range md.Components {
				comps[name] = encodeTypeNode(obj)
			}
			compsJSON, err := json.Marshal(comps)
			if err != nil {
				return nil, arrow.Metadata{}, err
			}
			componentsBuilder.Append(string(compsJSON))
		} else {
			componentsBuilder.AppendNull()
		}
	}

	cols := make([]arrow.Array, 8)
	cols[0] = idBuilder.NewArray()
	cols[1] = enabledBuilder.NewArray()
	cols[2] = categoryBuilder.NewArray()
	cols[3] = schemaNameBuilder.NewArray()
	cols[4] = versionBuilder.NewArray()
	cols[5] = parametersBuilder.NewArray()
	cols[6] = responseBuilder.NewArray()
	cols[7] = componentsBuilder.NewArray()
	for _, c := range cols {
		defer c.Release()
	}

	batch := array.NewRecordBatch(describeSchema, cols, int64(len(ids)))

	meta := arrow.NewMetadata(
		[]string{MetaProtocolName, MetaRequestVersion, MetaDescribeVersion},
		[]string{"GoFunctionServer", ProtocolVersion, DescribeVersion},
	)
	return batch, meta, nil
}

// serveDescribe handles the __describe__ introspection request.
func (s *Server) serveDescribe(w io.Writer, req *Request) error {
	batch, meta, err := s.buildDescribeBatch()
	if err != nil {
		return WriteErrorResponse(w, nil,
			NewFunctionError(ErrorSystemUnknown, "building describe batch: %v", err), req.RequestID)
	}
	defer batch.Release()

	batchWithMeta := array.NewRecordBatchWithMetadata(
		describeSchema, batch.Columns(), batch.NumRows(), meta)
	defer batchWithMeta.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(describeSchema))
	defer writer.Close()

	return writer.Write(batchWithMeta)
}
