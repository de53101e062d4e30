// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"fmt"
)

// PrimitiveKind enumerates the leaf kinds a DataType can describe.
type PrimitiveKind int

const (
	PrimitiveUnit PrimitiveKind = iota
	PrimitiveBool
	PrimitiveBytes
	PrimitiveDouble
	PrimitiveFloat
	PrimitiveLong
	PrimitiveInt
	PrimitiveString
	PrimitivePendingIntent
)

// String returns the wire name of the primitive kind.
func (k PrimitiveKind) String() string {
	switch k {
	case PrimitiveUnit:
		return "unit"
	case PrimitiveBool:
		return "bool"
	case PrimitiveBytes:
		return "bytes"
	case PrimitiveDouble:
		return "double"
	case PrimitiveFloat:
		return "float"
	case PrimitiveLong:
		return "long"
	case PrimitiveInt:
		return "int"
	case PrimitiveString:
		return "string"
	case PrimitivePendingIntent:
		return "pendingIntent"
	default:
		return fmt.Sprintf("primitive(%d)", int(k))
	}
}

func primitiveKindFromString(s string) (PrimitiveKind, error) {
	switch s {
	case "unit":
		return PrimitiveUnit, nil
	case "bool":
		return PrimitiveBool, nil
	case "bytes":
		return PrimitiveBytes, nil
	case "double":
		return PrimitiveDouble, nil
	case "float":
		return PrimitiveFloat, nil
	case "long":
		return PrimitiveLong, nil
	case "int":
		return PrimitiveInt, nil
	case "string":
		return PrimitiveString, nil
	case "pendingIntent":
		return PrimitivePendingIntent, nil
	default:
		return 0, fmt.Errorf("appfn: unknown primitive kind %q", s)
	}
}

// DataType is the closed variant set describing a data shape recursively.
// Values are purely descriptive, immutable after construction, and produced
// by an external build-time collaborator; the runtime only consumes them.
type DataType interface {
	// Nullable reports whether absence/null is permitted for the value.
	Nullable() bool
	// Equal reports structural equality with another type.
	Equal(DataType) bool
	// String renders a human-readable shape, used by introspection.
	String() string

	isDataType()
}

// PrimitiveType describes a leaf value.
type PrimitiveType struct {
	Kind       PrimitiveKind
	IsNullable bool
}

func (t *PrimitiveType) isDataType()    {}
func (t *PrimitiveType) Nullable() bool { return t.IsNullable }

func (t *PrimitiveType) Equal(o DataType) bool {
	ot, ok := o.(*PrimitiveType)
	return ok && t.Kind == ot.Kind && t.IsNullable == ot.IsNullable
}

func (t *PrimitiveType) String() string {
	if t.IsNullable {
		return t.Kind.String() + "?"
	}
	return t.Kind.String()
}

// ArrayType describes an ordered sequence of one item type.
type ArrayType struct {
	Item       DataType
	IsNullable bool
}

func (t *ArrayType) isDataType()    {}
func (t *ArrayType) Nullable() bool { return t.IsNullable }

func (t *ArrayType) Equal(o DataType) bool {
	ot, ok := o.(*ArrayType)
	return ok && t.IsNullable == ot.IsNullable && t.Item.Equal(ot.Item)
}

func (t *ArrayType) String() string {
	s := "array<" + t.Item.String() + ">"
	if t.IsNullable {
		s += "?"
	}
	return s
}

// Property is one named member of an ObjectType. Declaration order is
// significant for deterministic generation by build tooling; it is
// irrelevant for runtime decoding.
type Property struct {
	Name string
	Type DataType
}

// ObjectType describes a composite with ordered properties and a
// required-name set.
type ObjectType struct {
	// QualifiedName is the logical type the object represents; "" for
	// anonymous shapes such as a function's parameter envelope.
	QualifiedName string
	Properties    []Property
	Required      []string
	IsNullable    bool
}

func (t *ObjectType) isDataType()    {}
func (t *ObjectType) Nullable() bool { return t.IsNullable }

func (t *ObjectType) Equal(o DataType) bool {
	ot, ok := o.(*ObjectType)
	if !ok || t.QualifiedName != ot.QualifiedName || t.IsNullable != ot.IsNullable {
		return false
	}
	if len(t.Properties) != len(ot.Properties) || len(t.Required) != len(ot.Required) {
		return false
	}
	for i, p := range t.Properties {
		if p.Name != ot.Properties[i].Name || !p.Type.Equal(ot.Properties[i].Type) {
			return false
		}
	}
	for i, r := range t.Required {
		if r != ot.Required[i] {
			return false
		}
	}
	return true
}

func (t *ObjectType) String() string {
	s := "object"
	if t.QualifiedName != "" {
		s += "(" + t.QualifiedName + ")"
	}
	if t.IsNullable {
		s += "?"
	}
	return s
}

// Property returns the declared type for name, or nil when not declared.
func (t *ObjectType) Property(name string) DataType {
	for _, p := range t.Properties {
		if p.Name == name {
			return p.Type
		}
	}
	return nil
}

// IsRequired reports whether name is in the required set.
func (t *ObjectType) IsRequired(name string) bool {
	for _, r := range t.Required {
		if r == name {
			return true
		}
	}
	return false
}

// ReferenceType names a shape in the components table. References exist so
// recursive and shared shapes can be expressed without literal cycles in the
// type tree.
type ReferenceType struct {
	Name       string
	IsNullable bool
}

func (t *ReferenceType) isDataType()    {}
func (t *ReferenceType) Nullable() bool { return t.IsNullable }

func (t *ReferenceType) Equal(o DataType) bool {
	ot, ok := o.(*ReferenceType)
	return ok && t.Name == ot.Name && t.IsNullable == ot.IsNullable
}

func (t *ReferenceType) String() string {
	s := "ref(" + t.Name + ")"
	if t.IsNullable {
		s += "?"
	}
	return s
}

// Components is the by-name de-duplication table for shared and recursive
// object shapes. It is built once and read-only afterwards, so it is safe to
// share across concurrent requests without locking.
type Components map[string]*ObjectType

// Resolve returns the object shape a reference names.
func (c Components) Resolve(ref *ReferenceType) (*ObjectType, error) {
	t, ok := c[ref.Name]
	if !ok {
		return nil, fmt.Errorf("appfn: unresolved type reference %q", ref.Name)
	}
	return t, nil
}

// deref follows a reference one level; non-reference types pass through.
func (c Components) deref(t DataType) (DataType, error) {
	ref, ok := t.(*ReferenceType)
	if !ok {
		return t, nil
	}
	obj, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// SchemaIdentity names a published external contract. It keys translator
// selection and never participates in container typing.
type SchemaIdentity struct {
	Category string
	Name     string
	Version  int64
}

func (id SchemaIdentity) String() string {
	return fmt.Sprintf("%s/%s@%d", id.Category, id.Name, id.Version)
}

// FunctionMetadata composes a function signature with the shared components
// table. Produced at build time; held read-only for the process lifetime.
type FunctionMetadata struct {
	// ID is the stable function identifier requests address.
	ID string
	// EnabledByDefault controls whether the function is callable before any
	// runtime override is applied.
	EnabledByDefault bool
	// Schema identifies the published contract the function implements, or
	// nil for functions outside any published contract.
	Schema *SchemaIdentity
	// Parameters is the declared parameter envelope.
	Parameters *ObjectType
	// Response is the declared return-value shape.
	Response DataType
	// Components holds the shared shapes Parameters and Response refer to.
	Components Components
}

// Validate checks the structural invariants: every reference resolves within
// the components table and every required name is a declared property.
func (m *FunctionMetadata) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("appfn: function metadata missing id")
	}
	if m.Parameters == nil {
		return fmt.Errorf("appfn: function %q has no parameter type", m.ID)
	}
	if err := m.validateType(m.Parameters); err != nil {
		return fmt.Errorf("appfn: function %q parameters: %w", m.ID, err)
	}
	if m.Response != nil {
		if err := m.validateType(m.Response); err != nil {
			return fmt.Errorf("appfn: function %q response: %w", m.ID, err)
		}
	}
	for name, obj := range m.Components {
		if err := m.validateType(obj); err != nil {
			return fmt.Errorf("appfn: function %q component %q: %w", m.ID, name, err)
		}
	}
	return nil
}

func (m *FunctionMetadata) validateType(t DataType) error {
	switch v := t.(type) {
	case *PrimitiveType:
		return nil
	case *ArrayType:
		return m.validateType(v.Item)
	case *ReferenceType:
		_, err := m.Components.Resolve(v)
		return err
	case *ObjectType:
		for _, r := range v.Required {
			if v.Property(r) == nil {
				return fmt.Errorf("required name %q is not a declared property", r)
			}
		}
		for _, p := range v.Properties {
			if err := m.validateType(p.Type); err != nil {
				return fmt.Errorf("property %q: %w", p.Name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown type variant %T", t)
	}
}
