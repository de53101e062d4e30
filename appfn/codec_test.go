// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEchoMetadata() *FunctionMetadata {
	return &FunctionMetadata{
		ID:               "com.example.test#echoAll",
		EnabledByDefault: true,
		Parameters: &ObjectType{
			Properties: []Property{
				{Name: "flag", Type: &PrimitiveType{Kind: PrimitiveBool}},
				{Name: "count", Type: &PrimitiveType{Kind: PrimitiveLong}},
				{Name: "small", Type: &PrimitiveType{Kind: PrimitiveInt}},
				{Name: "ratio", Type: &PrimitiveType{Kind: PrimitiveDouble}},
				{Name: "approx", Type: &PrimitiveType{Kind: PrimitiveFloat}},
				{Name: "name", Type: &PrimitiveType{Kind: PrimitiveString}},
				{Name: "blob", Type: &PrimitiveType{Kind: PrimitiveBytes}},
				{Name: "tags", Type: &ArrayType{Item: &PrimitiveType{Kind: PrimitiveString}, IsNullable: true}},
				{Name: "note", Type: &ReferenceType{Name: "Note", IsNullable: true}},
			},
			Required: []string{"flag", "count", "small", "ratio", "approx", "name", "blob"},
		},
		Response: &PrimitiveType{Kind: PrimitiveString},
		Components: Components{
			"Note": &ObjectType{
				QualifiedName: "com.example.test.Note",
				Properties: []Property{
					{Name: "id", Type: &PrimitiveType{Kind: PrimitiveString}},
					{Name: "title", Type: &PrimitiveType{Kind: PrimitiveString}},
				},
				Required: []string{"id", "title"},
			},
		},
	}
}

func echoParams() *Data {
	return NewDataBuilder("").
		SetBool("flag", true).
		SetLong("count", 42).
		SetLong("small", 7).
		SetDouble("ratio", 2.5).
		SetDouble("approx", 1.25).
		SetString("name", "x").
		SetBytes("blob", []byte{0xde, 0xad}).
		Build()
}

func TestDecodeParameters_AllKinds(t *testing.T) {
	md := testEchoMetadata()
	got, err := DecodeParameters(md, echoParams())
	require.NoError(t, err)

	// One entry per declared parameter, nil for the absent nullable ones.
	assert.Len(t, got, len(md.Parameters.Properties))
	assert.Equal(t, true, got["flag"])
	assert.Equal(t, int64(42), got["count"])
	assert.Equal(t, int32(7), got["small"])
	assert.Equal(t, 2.5, got["ratio"])
	assert.Equal(t, float32(1.25), got["approx"])
	assert.Equal(t, "x", got["name"])
	assert.Equal(t, []byte{0xde, 0xad}, got["blob"])
	assert.Nil(t, got["tags"])
	assert.Nil(t, got["note"])
}

func TestDecodeParameters_AbsentRequired(t *testing.T) {
	md := testEchoMetadata()
	params := NewDataBuilder("").SetBool("flag", true).Build()

	_, err := DecodeParameters(md, params)
	require.Error(t, err)
	assert.Equal(t, ErrorInvalidArgument, CodeOf(err))
}

func TestDecodeParameters_TypeMismatch(t *testing.T) {
	md := testEchoMetadata()
	bad := NewDataBuilder("").
		SetBool("flag", true).
		SetString("count", "not a number").
		SetLong("small", 7).
		SetDouble("ratio", 2.5).
		SetDouble("approx", 1.25).
		SetString("name", "x").
		SetBytes("blob", []byte{1}).
		Build()

	_, err := DecodeParameters(md, bad)
	require.Error(t, err)
	assert.Equal(t, ErrorInvalidArgument, CodeOf(err))
}

func TestDecodeParameters_IntRange(t *testing.T) {
	md := testEchoMetadata()
	b := NewDataBuilder("").
		SetBool("flag", true).
		SetLong("count", 1).
		SetLong("small", math.MaxInt32+1).
		SetDouble("ratio", 0).
		SetDouble("approx", 0).
		SetString("name", "x").
		SetBytes("blob", []byte{1})

	_, err := DecodeParameters(md, b.Build())
	require.Error(t, err)
	assert.Equal(t, ErrorInvalidArgument, CodeOf(err))
	assert.Contains(t, err.Error(), "out of range")
}

func TestDecodeParameters_FloatRange(t *testing.T) {
	md := testEchoMetadata()
	b := NewDataBuilder("").
		SetBool("flag", true).
		SetLong("count", 1).
		SetLong("small", 1).
		SetDouble("ratio", 0).
		SetDouble("approx", math.MaxFloat64).
		SetString("name", "x").
		SetBytes("blob", []byte{1})

	_, err := DecodeParameters(md, b.Build())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestDecodeParameters_NestedObject(t *testing.T) {
	md := testEchoMetadata()
	note := NewDataBuilder("com.example.test.Note").
		SetString("id", "n1").
		SetString("title", "t").
		Build()
	b := NewDataBuilder("").
		SetBool("flag", true).
		SetLong("count", 1).
		SetLong("small", 1).
		SetDouble("ratio", 0).
		SetDouble("approx", 0).
		SetString("name", "x").
		SetBytes("blob", []byte{1}).
		SetData("note", note)

	got, err := DecodeParameters(md, b.Build())
	require.NoError(t, err)
	assert.True(t, note.Equal(got["note"].(*Data)))
}

func TestDecodeParameters_NestedObjectMissingRequired(t *testing.T) {
	md := testEchoMetadata()
	note := NewDataBuilder("com.example.test.Note").SetString("id", "n1").Build()
	b := NewDataBuilder("").
		SetBool("flag", true).
		SetLong("count", 1).
		SetLong("small", 1).
		SetDouble("ratio", 0).
		SetDouble("approx", 0).
		SetString("name", "x").
		SetBytes("blob", []byte{1}).
		SetData("note", note)

	_, err := DecodeParameters(md, b.Build())
	require.Error(t, err)
	assert.Equal(t, ErrorInvalidArgument, CodeOf(err))
	assert.Contains(t, err.Error(), "title")
}

func TestDecodeParameters_NilContainer(t *testing.T) {
	md := &FunctionMetadata{
		ID: "com.example#noop",
		Parameters: &ObjectType{
			Properties: []Property{
				{Name: "opt", Type: &PrimitiveType{Kind: PrimitiveString, IsNullable: true}},
			},
		},
	}
	got, err := DecodeParameters(md, nil)
	require.NoError(t, err)
	assert.Nil(t, got["opt"])
}

func TestEncodeResponse_Primitive(t *testing.T) {
	md := testEchoMetadata()
	d, err := EncodeResponse(md, "hello")
	require.NoError(t, err)

	v, err := d.GetString(ReturnValueKey)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestEncodeResponse_Object(t *testing.T) {
	md := testEchoMetadata()
	md.Response = &ReferenceType{Name: "Note"}
	note := NewDataBuilder("com.example.test.Note").
		SetString("id", "n1").
		SetString("title", "t").
		Build()

	d, err := EncodeResponse(md, note)
	require.NoError(t, err)

	got, err := d.GetData(ReturnValueKey)
	require.NoError(t, err)
	assert.True(t, note.Equal(got))
}

func TestEncodeResponse_ObjectList(t *testing.T) {
	md := testEchoMetadata()
	md.Response = &ArrayType{Item: &ReferenceType{Name: "Note"}}
	notes := []*Data{
		NewDataBuilder("com.example.test.Note").SetString("id", "n1").SetString("title", "a").Build(),
		NewDataBuilder("com.example.test.Note").SetString("id", "n2").SetString("title", "b").Build(),
	}

	d, err := EncodeResponse(md, notes)
	require.NoError(t, err)

	got, err := d.GetDataList(ReturnValueKey)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, notes[1].Equal(got[1]))
}

func TestEncodeResponse_Unit(t *testing.T) {
	md := testEchoMetadata()
	md.Response = &PrimitiveType{Kind: PrimitiveUnit}
	d, err := EncodeResponse(md, "ignored")
	require.NoError(t, err)
	assert.Same(t, Empty, d)

	md.Response = nil
	d, err = EncodeResponse(md, nil)
	require.NoError(t, err)
	assert.Same(t, Empty, d)
}

func TestEncodeResponse_NilResult(t *testing.T) {
	md := testEchoMetadata()

	// Non-nullable response with no value is a handler fault.
	_, err := EncodeResponse(md, nil)
	require.Error(t, err)
	assert.Equal(t, ErrorAppUnknown, CodeOf(err))

	// Nullable response with no value yields the empty container.
	md.Response = &PrimitiveType{Kind: PrimitiveString, IsNullable: true}
	d, err := EncodeResponse(md, nil)
	require.NoError(t, err)
	assert.Same(t, Empty, d)
}

func TestEncodeResponse_ShapeViolationIsAppFault(t *testing.T) {
	md := testEchoMetadata()
	_, err := EncodeResponse(md, 12345)
	require.Error(t, err)
	assert.Equal(t, ErrorAppUnknown, CodeOf(err))

	md.Response = &ReferenceType{Name: "Note"}
	incomplete := NewDataBuilder("com.example.test.Note").SetString("id", "n1").Build()
	_, err = EncodeResponse(md, incomplete)
	require.Error(t, err)
	assert.Equal(t, ErrorAppUnknown, CodeOf(err))
}

func TestEncodeResponse_NumericWidening(t *testing.T) {
	md := testEchoMetadata()
	md.Response = &PrimitiveType{Kind: PrimitiveLong}

	d, err := EncodeResponse(md, int(7))
	require.NoError(t, err)
	v, err := d.GetLong(ReturnValueKey)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	md.Response = &PrimitiveType{Kind: PrimitiveFloat}
	d, err = EncodeResponse(md, float32(1.5))
	require.NoError(t, err)
	f, err := d.GetDouble(ReturnValueKey)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	md.Response = &PrimitiveType{Kind: PrimitiveInt}
	_, err = EncodeResponse(md, int64(math.MaxInt32)+1)
	require.Error(t, err)
	assert.Equal(t, ErrorAppUnknown, CodeOf(err))
}
