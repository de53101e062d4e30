// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNoteMetadata() *FunctionMetadata {
	return &FunctionMetadata{
		ID:               "com.example.notes#createNote",
		EnabledByDefault: true,
		Schema:           &SchemaIdentity{Category: "notes", Name: "createNote", Version: 2},
		Parameters: &ObjectType{
			Properties: []Property{
				{Name: "title", Type: &PrimitiveType{Kind: PrimitiveString}},
				{Name: "content", Type: &PrimitiveType{Kind: PrimitiveString, IsNullable: true}},
				{Name: "attachments", Type: &ArrayType{Item: &ReferenceType{Name: "Attachment"}, IsNullable: true}},
			},
			Required: []string{"title"},
		},
		Response: &ReferenceType{Name: "Note"},
		Components: Components{
			"Attachment": &ObjectType{
				QualifiedName: "com.example.notes.Attachment",
				Properties: []Property{
					{Name: "uri", Type: &PrimitiveType{Kind: PrimitiveString}},
				},
				Required: []string{"uri"},
			},
			"Note": &ObjectType{
				QualifiedName: "com.example.notes.Note",
				Properties: []Property{
					{Name: "id", Type: &PrimitiveType{Kind: PrimitiveString}},
					{Name: "title", Type: &PrimitiveType{Kind: PrimitiveString}},
					{Name: "attachments", Type: &ArrayType{Item: &ReferenceType{Name: "Attachment"}}},
				},
				Required: []string{"id", "title"},
			},
		},
	}
}

func TestFunctionMetadata_Validate(t *testing.T) {
	require.NoError(t, testNoteMetadata().Validate())
}

func TestFunctionMetadata_ValidateUnresolvedReference(t *testing.T) {
	md := testNoteMetadata()
	md.Response = &ReferenceType{Name: "Nonexistent"}
	err := md.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nonexistent")
}

func TestFunctionMetadata_ValidateRequiredNotDeclared(t *testing.T) {
	md := testNoteMetadata()
	md.Parameters.Required = append(md.Parameters.Required, "ghost")
	err := md.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestComponents_Resolve(t *testing.T) {
	md := testNoteMetadata()

	obj, err := md.Components.Resolve(&ReferenceType{Name: "Note"})
	require.NoError(t, err)
	assert.Equal(t, "com.example.notes.Note", obj.QualifiedName)

	_, err = md.Components.Resolve(&ReferenceType{Name: "Missing"})
	assert.Error(t, err)
}

func TestComponents_RecursiveShape(t *testing.T) {
	// A tree node referring to itself through the components table.
	tree := Components{
		"TreeNode": &ObjectType{
			QualifiedName: "com.example.TreeNode",
			Properties: []Property{
				{Name: "value", Type: &PrimitiveType{Kind: PrimitiveLong}},
				{Name: "children", Type: &ArrayType{Item: &ReferenceType{Name: "TreeNode"}, IsNullable: true}},
			},
			Required: []string{"value"},
		},
	}
	md := &FunctionMetadata{
		ID:         "com.example#walkTree",
		Parameters: &ObjectType{Properties: []Property{{Name: "root", Type: &ReferenceType{Name: "TreeNode"}}}, Required: []string{"root"}},
		Components: tree,
	}
	require.NoError(t, md.Validate())
}

func TestDataType_Equal(t *testing.T) {
	assert.True(t, (&PrimitiveType{Kind: PrimitiveLong}).Equal(&PrimitiveType{Kind: PrimitiveLong}))
	assert.False(t, (&PrimitiveType{Kind: PrimitiveLong}).Equal(&PrimitiveType{Kind: PrimitiveLong, IsNullable: true}))
	assert.False(t, (&PrimitiveType{Kind: PrimitiveLong}).Equal(&PrimitiveType{Kind: PrimitiveInt}))

	a := &ArrayType{Item: &PrimitiveType{Kind: PrimitiveString}}
	b := &ArrayType{Item: &PrimitiveType{Kind: PrimitiveString}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(&ArrayType{Item: &PrimitiveType{Kind: PrimitiveBool}}))

	assert.True(t, (&ReferenceType{Name: "X"}).Equal(&ReferenceType{Name: "X"}))
	assert.False(t, (&ReferenceType{Name: "X"}).Equal(&ReferenceType{Name: "Y"}))
}

func TestObjectType_PropertyAndRequired(t *testing.T) {
	obj := testNoteMetadata().Parameters
	assert.NotNil(t, obj.Property("title"))
	assert.Nil(t, obj.Property("ghost"))
	assert.True(t, obj.IsRequired("title"))
	assert.False(t, obj.IsRequired("content"))
}

func TestInventory_DuplicateID(t *testing.T) {
	_, err := NewInventory(testNoteMetadata(), testNoteMetadata())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestInventory_Lookup(t *testing.T) {
	inv, err := NewInventory(testNoteMetadata())
	require.NoError(t, err)

	md, ok := inv.Lookup("com.example.notes#createNote")
	require.True(t, ok)
	assert.Equal(t, int64(2), md.Schema.Version)

	_, ok = inv.Lookup("nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"com.example.notes#createNote"}, inv.IDs())
}

func TestLoadInventory_JSON(t *testing.T) {
	doc := `{
		"functions": [
			{
				"id": "com.example.notes#getNote",
				"enabledByDefault": true,
				"schema": {"category": "notes", "name": "getNote", "version": 2},
				"parameters": {
					"type": "object",
					"properties": [
						{"name": "id", "type": {"type": "primitive", "kind": "string"}}
					],
					"required": ["id"]
				},
				"response": {"type": "reference", "name": "Note"},
				"components": {
					"Note": {
						"type": "object",
						"qualifiedName": "com.example.notes.Note",
						"properties": [
							{"name": "id", "type": {"type": "primitive", "kind": "string"}},
							{"name": "title", "type": {"type": "primitive", "kind": "string"}},
							{"name": "score", "type": {"type": "primitive", "kind": "double", "nullable": true}},
							{"name": "tags", "type": {"type": "array", "item": {"type": "primitive", "kind": "string"}}}
						],
						"required": ["id", "title"]
					}
				}
			}
		]
	}`

	inv, err := LoadInventory([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 1, inv.Len())

	md, ok := inv.Lookup("com.example.notes#getNote")
	require.True(t, ok)
	assert.True(t, md.EnabledByDefault)
	assert.Equal(t, SchemaIdentity{Category: "notes", Name: "getNote", Version: 2}, *md.Schema)
	assert.True(t, md.Parameters.IsRequired("id"))

	note := md.Components["Note"]
	require.NotNil(t, note)
	assert.True(t, note.Property("score").Nullable())
	assert.IsType(t, &ArrayType{}, note.Property("tags"))
}

func TestLoadInventory_RejectsUnknownVariant(t *testing.T) {
	doc := `{"functions":[{"id":"x","parameters":{"type":"tuple"}}]}`
	_, err := LoadInventory([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type variant")
}

func TestMarshalTypeJSON_RoundTrip(t *testing.T) {
	orig := &ObjectType{
		QualifiedName: "com.example.Event",
		Properties: []Property{
			{Name: "title", Type: &PrimitiveType{Kind: PrimitiveString}},
			{Name: "start", Type: &PrimitiveType{Kind: PrimitiveLong}},
			{Name: "guests", Type: &ArrayType{Item: &ReferenceType{Name: "Guest"}, IsNullable: true}},
		},
		Required: []string{"title", "start"},
	}

	raw, err := MarshalTypeJSON(orig)
	require.NoError(t, err)

	var node typeNode
	require.NoError(t, json.Unmarshal(raw, &node))
	back, err := decodeTypeNode(&node)
	require.NoError(t, err)
	assert.True(t, orig.Equal(back))
}
