// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"errors"
	"fmt"
	"math"
)

// ReturnValueKey is the reserved key carrying a function's return value in
// the response container.
const ReturnValueKey = "returnValue"

// DecodeParameters extracts one value per declared parameter from the
// (possibly translated) container, keyed by parameter name, for the handler
// call. The container is trusted to be structurally a parameter envelope;
// every violation of the declared shape is the caller's fault and reports
// InvalidArgument.
//
// Absent parameters that are nullable and not required decode to a nil
// entry, so the result always has exactly one entry per declared parameter.
func DecodeParameters(md *FunctionMetadata, params *Data) (map[string]any, error) {
	if params == nil {
		params = Empty
	}
	out := make(map[string]any, len(md.Parameters.Properties))
	for _, p := range md.Parameters.Properties {
		pt, err := md.Components.deref(p.Type)
		if err != nil {
			return nil, NewFunctionError(ErrorInvalidArgument, "parameter %q: %v", p.Name, err)
		}
		if !params.Has(p.Name) {
			if md.Parameters.IsRequired(p.Name) || !pt.Nullable() {
				return nil, NewFunctionError(ErrorInvalidArgument, "parameter %q is absent", p.Name)
			}
			out[p.Name] = nil
			continue
		}
		v, err := decodeValue(md.Components, pt, params, p.Name)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	return out, nil
}

func decodeValue(components Components, t DataType, d *Data, key string) (any, error) {
	switch v := t.(type) {
	case *PrimitiveType:
		return decodePrimitive(v.Kind, d, key)
	case *ObjectType:
		nested, err := d.GetData(key)
		if err != nil {
			return nil, invalidArg(key, err)
		}
		if err := checkObject(v, nested); err != nil {
			return nil, err
		}
		return nested, nil
	case *ArrayType:
		return decodeArray(components, v, d, key)
	default:
		return nil, NewFunctionError(ErrorInvalidArgument, "parameter %q: unsupported type %s", key, t)
	}
}

func decodePrimitive(kind PrimitiveKind, d *Data, key string) (any, error) {
	switch kind {
	case PrimitiveUnit:
		return nil, nil
	case PrimitiveBool:
		v, err := d.GetBool(key)
		if err != nil {
			return nil, invalidArg(key, err)
		}
		return v, nil
	case PrimitiveLong:
		v, err := d.GetLong(key)
		if err != nil {
			return nil, invalidArg(key, err)
		}
		return v, nil
	case PrimitiveInt:
		v, err := d.GetLong(key)
		if err != nil {
			return nil, invalidArg(key, err)
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, NewFunctionError(ErrorInvalidArgument,
				"parameter %q: value %d out of range for int", key, v)
		}
		return int32(v), nil
	case PrimitiveDouble:
		v, err := d.GetDouble(key)
		if err != nil {
			return nil, invalidArg(key, err)
		}
		return v, nil
	case PrimitiveFloat:
		v, err := d.GetDouble(key)
		if err != nil {
			return nil, invalidArg(key, err)
		}
		if !math.IsInf(v, 0) && math.Abs(v) > math.MaxFloat32 {
			return nil, NewFunctionError(ErrorInvalidArgument,
				"parameter %q: value %g out of range for float", key, v)
		}
		return float32(v), nil
	case PrimitiveString:
		v, err := d.GetString(key)
		if err != nil {
			return nil, invalidArg(key, err)
		}
		return v, nil
	case PrimitiveBytes, PrimitivePendingIntent:
		// Pending intents cross the boundary as opaque bytes.
		v, err := d.GetBytes(key)
		if err != nil {
			return nil, invalidArg(key, err)
		}
		return v, nil
	default:
		return nil, NewFunctionError(ErrorInvalidArgument, "parameter %q: unknown primitive %s", key, kind)
	}
}

func decodeArray(components Components, t *ArrayType, d *Data, key string) (any, error) {
	item, err := components.deref(t.Item)
	if err != nil {
		return nil, NewFunctionError(ErrorInvalidArgument, "parameter %q: %v", key, err)
	}
	switch it := item.(type) {
	case *PrimitiveType:
		switch it.Kind {
		case PrimitiveBool:
			v, err := d.GetBoolList(key)
			if err != nil {
				return nil, invalidArg(key, err)
			}
			return v, nil
		case PrimitiveLong, PrimitiveInt:
			v, err := d.GetLongList(key)
			if err != nil {
				return nil, invalidArg(key, err)
			}
			return v, nil
		case PrimitiveDouble, PrimitiveFloat:
			v, err := d.GetDoubleList(key)
			if err != nil {
				return nil, invalidArg(key, err)
			}
			return v, nil
		case PrimitiveString:
			v, err := d.GetStringList(key)
			if err != nil {
				return nil, invalidArg(key, err)
			}
			return v, nil
		default:
			return nil, NewFunctionError(ErrorInvalidArgument,
				"parameter %q: arrays of %s are not representable", key, it.Kind)
		}
	case *ObjectType:
		v, err := d.GetDataList(key)
		if err != nil {
			return nil, invalidArg(key, err)
		}
		for i, elem := range v {
			if err := checkObject(it, elem); err != nil {
				return nil, NewFunctionError(ErrorInvalidArgument, "parameter %q[%d]: %v", key, i, err)
			}
		}
		return v, nil
	default:
		return nil, NewFunctionError(ErrorInvalidArgument, "parameter %q: unsupported item type %s", key, item)
	}
}

// checkObject verifies that a nested container carries every required
// property of its declared shape.
func checkObject(t *ObjectType, d *Data) error {
	if d == nil {
		return NewFunctionError(ErrorInvalidArgument, "object %s is nil", t)
	}
	for _, r := range t.Required {
		if !d.Has(r) {
			return NewFunctionError(ErrorInvalidArgument,
				"object %s missing required property %q", t, r)
		}
	}
	return nil
}

func invalidArg(key string, err error) error {
	if errors.Is(err, ErrMissingField) {
		return NewFunctionError(ErrorInvalidArgument, "parameter %q is absent", key)
	}
	return NewFunctionError(ErrorInvalidArgument, "parameter %q: %v", key, err)
}

// EncodeResponse builds the response container from a handler's raw result
// under the declared response type. The return value lives at
// ReturnValueKey. A shape violation here is the handler's fault and reports
// AppUnknown.
func EncodeResponse(md *FunctionMetadata, result any) (*Data, error) {
	rt := md.Response
	if rt == nil {
		return Empty, nil
	}
	resolved, err := md.Components.deref(rt)
	if err != nil {
		return nil, NewFunctionError(ErrorAppUnknown, "response type: %v", err)
	}
	if pt, ok := resolved.(*PrimitiveType); ok && pt.Kind == PrimitiveUnit {
		return Empty, nil
	}
	if result == nil {
		if resolved.Nullable() {
			return Empty, nil
		}
		return nil, NewFunctionError(ErrorAppUnknown, "handler returned no value for non-nullable response")
	}

	b := NewDataBuilder("")
	if err := encodeValue(md.Components, b, ReturnValueKey, resolved, result); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func encodeValue(components Components, b *DataBuilder, key string, t DataType, v any) error {
	switch rt := t.(type) {
	case *PrimitiveType:
		return encodePrimitive(b, key, rt.Kind, v)
	case *ObjectType:
		d, ok := v.(*Data)
		if !ok {
			return NewFunctionError(ErrorAppUnknown, "result %q: expected container, got %T", key, v)
		}
		if err := checkObject(rt, d); err != nil {
			return NewFunctionError(ErrorAppUnknown, "result %q: %v", key, err)
		}
		b.SetData(key, d)
		return nil
	case *ArrayType:
		return encodeArray(components, b, key, rt, v)
	default:
		return NewFunctionError(ErrorAppUnknown, "result %q: unsupported type %s", key, t)
	}
}

func encodePrimitive(b *DataBuilder, key string, kind PrimitiveKind, v any) error {
	switch kind {
	case PrimitiveUnit:
		return nil
	case PrimitiveBool:
		bv, ok := v.(bool)
		if !ok {
			return encodeTypeError(key, kind, v)
		}
		b.SetBool(key, bv)
		return nil
	case PrimitiveLong, PrimitiveInt:
		iv, err := toLong(v)
		if err != nil {
			return encodeTypeError(key, kind, v)
		}
		if kind == PrimitiveInt && (iv < math.MinInt32 || iv > math.MaxInt32) {
			return NewFunctionError(ErrorAppUnknown, "result %q: value %d out of range for int", key, iv)
		}
		b.SetLong(key, iv)
		return nil
	case PrimitiveDouble, PrimitiveFloat:
		fv, err := toDouble(v)
		if err != nil {
			return encodeTypeError(key, kind, v)
		}
		b.SetDouble(key, fv)
		return nil
	case PrimitiveString:
		sv, ok := v.(string)
		if !ok {
			return encodeTypeError(key, kind, v)
		}
		b.SetString(key, sv)
		return nil
	case PrimitiveBytes, PrimitivePendingIntent:
		bv, ok := v.([]byte)
		if !ok {
			return encodeTypeError(key, kind, v)
		}
		b.SetBytes(key, bv)
		return nil
	default:
		return NewFunctionError(ErrorAppUnknown, "result %q: unknown primitive %s", key, kind)
	}
}

func encodeArray(components Components, b *DataBuilder, key string, t *ArrayType, v any) error {
	item, err := components.deref(t.Item)
	if err != nil {
		return NewFunctionError(ErrorAppUnknown, "result %q: %v", key, err)
	}
	switch it := item.(type) {
	case *PrimitiveType:
		switch it.Kind {
		case PrimitiveBool:
			vs, ok := v.([]bool)
			if !ok {
				return encodeTypeError(key, it.Kind, v)
			}
			b.SetBoolList(key, vs)
		case PrimitiveLong, PrimitiveInt:
			vs, ok := v.([]int64)
			if !ok {
				return encodeTypeError(key, it.Kind, v)
			}
			b.SetLongList(key, vs)
		case PrimitiveDouble, PrimitiveFloat:
			vs, ok := v.([]float64)
			if !ok {
				return encodeTypeError(key, it.Kind, v)
			}
			b.SetDoubleList(key, vs)
		case PrimitiveString:
			vs, ok := v.([]string)
			if !ok {
				return encodeTypeError(key, it.Kind, v)
			}
			b.SetStringList(key, vs)
		default:
			return NewFunctionError(ErrorAppUnknown,
				"result %q: arrays of %s are not representable", key, it.Kind)
		}
		return nil
	case *ObjectType:
		vs, ok := v.([]*Data)
		if !ok {
			return NewFunctionError(ErrorAppUnknown, "result %q: expected container list, got %T", key, v)
		}
		for i, elem := range vs {
			if err := checkObject(it, elem); err != nil {
				return NewFunctionError(ErrorAppUnknown, "result %q[%d]: %v", key, i, err)
			}
		}
		b.SetDataList(key, vs)
		return nil
	default:
		return NewFunctionError(ErrorAppUnknown, "result %q: unsupported item type %s", key, item)
	}
}

func encodeTypeError(key string, kind PrimitiveKind, v any) error {
	return NewFunctionError(ErrorAppUnknown, "result %q: expected %s, got %T", key, kind, v)
}

func toLong(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to long", v)
	}
}

func toDouble(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to double", v)
	}
}
