// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Inventory is the compiled id→metadata table produced at build time by an
// external collaborator. It is read-only after construction and safe to
// share across concurrent requests without locking.
type Inventory struct {
	functions map[string]*FunctionMetadata
}

// NewInventory builds an inventory from already-constructed metadata. Every
// entry is validated; duplicate ids are rejected.
func NewInventory(fns ...*FunctionMetadata) (*Inventory, error) {
	inv := &Inventory{functions: make(map[string]*FunctionMetadata, len(fns))}
	for _, fn := range fns {
		if err := fn.Validate(); err != nil {
			return nil, err
		}
		if _, dup := inv.functions[fn.ID]; dup {
			return nil, fmt.Errorf("appfn: duplicate function id %q in inventory", fn.ID)
		}
		inv.functions[fn.ID] = fn
	}
	return inv, nil
}

// Lookup returns the metadata registered for a function id.
func (inv *Inventory) Lookup(id string) (*FunctionMetadata, bool) {
	fn, ok := inv.functions[id]
	return fn, ok
}

// Len returns the number of registered functions.
func (inv *Inventory) Len() int { return len(inv.functions) }

// IDs returns the registered function ids in sorted order.
func (inv *Inventory) IDs() []string {
	ids := make([]string, 0, len(inv.functions))
	for id := range inv.functions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// --- JSON wire form ---
//
// The build-time collaborator emits the inventory as JSON. Types use a
// discriminated union with a "type" field: "primitive", "array", "object"
// or "reference".

type inventoryDoc struct {
	Functions []functionNode `json:"functions"`
}

type functionNode struct {
	ID               string               `json:"id"`
	EnabledByDefault bool                 `json:"enabledByDefault"`
	Schema           *schemaNode          `json:"schema,omitempty"`
	Parameters       *typeNode            `json:"parameters"`
	Response         *typeNode            `json:"response,omitempty"`
	Components       map[string]*typeNode `json:"components,omitempty"`
}

type schemaNode struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Version  int64  `json:"version"`
}

type propertyNode struct {
	Name string    `json:"name"`
	Type *typeNode `json:"type"`
}

type typeNode struct {
	Type          string         `json:"type"`
	Nullable      bool           `json:"nullable,omitempty"`
	Kind          string         `json:"kind,omitempty"`          // primitive
	Item          *typeNode      `json:"item,omitempty"`          // array
	Name          string         `json:"name,omitempty"`          // reference
	QualifiedName string         `json:"qualifiedName,omitempty"` // object
	Properties    []propertyNode `json:"properties,omitempty"`    // object
	Required      []string       `json:"required,omitempty"`      // object
}

// LoadInventory parses the JSON inventory document and validates every
// function entry.
func LoadInventory(data []byte) (*Inventory, error) {
	var doc inventoryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("appfn: parsing inventory: %w", err)
	}
	fns := make([]*FunctionMetadata, 0, len(doc.Functions))
	for _, fn := range doc.Functions {
		md, err := fn.toMetadata()
		if err != nil {
			return nil, err
		}
		fns = append(fns, md)
	}
	return NewInventory(fns...)
}

func (n functionNode) toMetadata() (*FunctionMetadata, error) {
	if n.Parameters == nil {
		return nil, fmt.Errorf("appfn: function %q missing parameters", n.ID)
	}
	params, err := decodeTypeNode(n.Parameters)
	if err != nil {
		return nil, fmt.Errorf("appfn: function %q parameters: %w", n.ID, err)
	}
	paramsObj, ok := params.(*ObjectType)
	if !ok {
		return nil, fmt.Errorf("appfn: function %q parameters must be an object type", n.ID)
	}

	md := &FunctionMetadata{
		ID:               n.ID,
		EnabledByDefault: n.EnabledByDefault,
		Parameters:       paramsObj,
	}
	if n.Schema != nil {
		md.Schema = &SchemaIdentity{
			Category: n.Schema.Category,
			Name:     n.Schema.Name,
			Version:  n.Schema.Version,
		}
	}
	if n.Response != nil {
		resp, err := decodeTypeNode(n.Response)
		if err != nil {
			return nil, fmt.Errorf("appfn: function %q response: %w", n.ID, err)
		}
		md.Response = resp
	}
	if len(n.Components) > 0 {
		md.Components = make(Components, len(n.Components))
		for name, node := range n.Components {
			t, err := decodeTypeNode(node)
			if err != nil {
				return nil, fmt.Errorf("appfn: function %q component %q: %w", n.ID, name, err)
			}
			obj, ok := t.(*ObjectType)
			if !ok {
				return nil, fmt.Errorf("appfn: function %q component %q must be an object type", n.ID, name)
			}
			md.Components[name] = obj
		}
	}
	return md, nil
}

func decodeTypeNode(n *typeNode) (DataType, error) {
	switch n.Type {
	case "primitive":
		kind, err := primitiveKindFromString(n.Kind)
		if err != nil {
			return nil, err
		}
		return &PrimitiveType{Kind: kind, IsNullable: n.Nullable}, nil
	case "array":
		if n.Item == nil {
			return nil, fmt.Errorf("appfn: array type missing item")
		}
		item, err := decodeTypeNode(n.Item)
		if err != nil {
			return nil, err
		}
		return &ArrayType{Item: item, IsNullable: n.Nullable}, nil
	case "reference":
		if n.Name == "" {
			return nil, fmt.Errorf("appfn: reference type missing name")
		}
		return &ReferenceType{Name: n.Name, IsNullable: n.Nullable}, nil
	case "object":
		obj := &ObjectType{
			QualifiedName: n.QualifiedName,
			Required:      n.Required,
			IsNullable:    n.Nullable,
		}
		for _, p := range n.Properties {
			pt, err := decodeTypeNode(p.Type)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", p.Name, err)
			}
			obj.Properties = append(obj.Properties, Property{Name: p.Name, Type: pt})
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("appfn: unknown type variant %q", n.Type)
	}
}

func encodeTypeNode(t DataType) *typeNode {
	switch v := t.(type) {
	case *PrimitiveType:
		return &typeNode{Type: "primitive", Kind: v.Kind.String(), Nullable: v.IsNullable}
	case *ArrayType:
		return &typeNode{Type: "array", Item: encodeTypeNode(v.Item), Nullable: v.IsNullable}
	case *ReferenceType:
		return &typeNode{Type: "reference", Name: v.Name, Nullable: v.IsNullable}
	case *ObjectType:
		n := &typeNode{
			Type:          "object",
			QualifiedName: v.QualifiedName,
			Required:      v.Required,
			Nullable:      v.IsNullable,
		}
		for _, p := range v.Properties {
			n.Properties = append(n.Properties, propertyNode{Name: p.Name, Type: encodeTypeNode(p.Type)})
		}
		return n
	default:
		return nil
	}
}

// MarshalTypeJSON renders a DataType in the inventory's JSON wire form. Used
// by introspection.
func MarshalTypeJSON(t DataType) ([]byte, error) {
	n := encodeTypeNode(t)
	if n == nil {
		return nil, fmt.Errorf("appfn: cannot marshal type %T", t)
	}
	return json.Marshal(n)
}
