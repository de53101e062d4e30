// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Kind identifies the stored kind of a Data field.
type Kind int

const (
	KindBool Kind = iota
	KindLong
	KindDouble
	KindString
	KindBytes
	KindData
	KindBoolList
	KindLongList
	KindDoubleList
	KindStringList
	KindDataList
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindData:
		return "data"
	case KindBoolList:
		return "list[bool]"
	case KindLongList:
		return "list[long]"
	case KindDoubleList:
		return "list[double]"
	case KindStringList:
		return "list[string]"
	case KindDataList:
		return "list[data]"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for use with errors.Is against field access failures.
var (
	ErrMissingField = errors.New("required field is absent")
	ErrTypeMismatch = errors.New("field stored under a different kind")
)

// MissingFieldError reports a required getter called on an absent key.
type MissingFieldError struct {
	Key string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("appfn: required field %q is absent", e.Key)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// TypeMismatchError reports a getter called with the wrong kind for a key
// that is present under another kind.
type TypeMismatchError struct {
	Key  string
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("appfn: field %q holds %s, requested as %s", e.Key, e.Got, e.Want)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// fieldValue is the tagged union stored per key. Exactly one payload slot is
// meaningful, selected by kind.
type fieldValue struct {
	kind    Kind
	b       bool
	i       int64
	f       float64
	s       string
	raw     []byte
	data    *Data
	bools   []bool
	longs   []int64
	doubles []float64
	strs    []string
	datas   []*Data
}

// Data is an immutable, named, self-describing key/value container used to
// carry parameters and return values across the invocation boundary. Fields
// are dynamically typed: each key maps to exactly one value of exactly one
// Kind. Build instances with a DataBuilder; Data itself has no mutators.
type Data struct {
	qualifiedName string
	fields        map[string]fieldValue
}

// Empty is the distinguished zero-field container.
var Empty = &Data{}

// QualifiedName returns the logical type this container represents, or ""
// for anonymous containers.
func (d *Data) QualifiedName() string { return d.qualifiedName }

// Len returns the number of fields set on the container.
func (d *Data) Len() int { return len(d.fields) }

// Keys returns the field keys in sorted order.
func (d *Data) Keys() []string {
	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether the key was set.
func (d *Data) Has(key string) bool {
	_, ok := d.fields[key]
	return ok
}

// KindOf returns the stored kind for key. The second return is false when
// the key was never set.
func (d *Data) KindOf(key string) (Kind, bool) {
	v, ok := d.fields[key]
	return v.kind, ok
}

// lookup implements the required-getter contract shared by all scalar getters.
func (d *Data) lookup(key string, want Kind) (fieldValue, error) {
	v, ok := d.fields[key]
	if !ok {
		return fieldValue{}, &MissingFieldError{Key: key}
	}
	if v.kind != want {
		return fieldValue{}, &TypeMismatchError{Key: key, Want: want, Got: v.kind}
	}
	return v, nil
}

// lookupList is the list-getter contract: absence is not an error, a present
// key under a different kind is.
func (d *Data) lookupList(key string, want Kind) (fieldValue, bool, error) {
	v, ok := d.fields[key]
	if !ok {
		return fieldValue{}, false, nil
	}
	if v.kind != want {
		return fieldValue{}, false, &TypeMismatchError{Key: key, Want: want, Got: v.kind}
	}
	return v, true, nil
}

// GetBool returns the boolean stored at key.
func (d *Data) GetBool(key string) (bool, error) {
	v, err := d.lookup(key, KindBool)
	if err != nil {
		return false, err
	}
	return v.b, nil
}

// GetBoolOr returns the boolean stored at key, or def when the key is absent.
func (d *Data) GetBoolOr(key string, def bool) (bool, error) {
	if !d.Has(key) {
		return def, nil
	}
	return d.GetBool(key)
}

// GetLong returns the 64-bit integer stored at key.
func (d *Data) GetLong(key string) (int64, error) {
	v, err := d.lookup(key, KindLong)
	if err != nil {
		return 0, err
	}
	return v.i, nil
}

// GetLongOr returns the integer stored at key, or def when the key is absent.
func (d *Data) GetLongOr(key string, def int64) (int64, error) {
	if !d.Has(key) {
		return def, nil
	}
	return d.GetLong(key)
}

// GetDouble returns the 64-bit float stored at key.
func (d *Data) GetDouble(key string) (float64, error) {
	v, err := d.lookup(key, KindDouble)
	if err != nil {
		return 0, err
	}
	return v.f, nil
}

// GetDoubleOr returns the float stored at key, or def when the key is absent.
func (d *Data) GetDoubleOr(key string, def float64) (float64, error) {
	if !d.Has(key) {
		return def, nil
	}
	return d.GetDouble(key)
}

// GetString returns the string stored at key.
func (d *Data) GetString(key string) (string, error) {
	v, err := d.lookup(key, KindString)
	if err != nil {
		return "", err
	}
	return v.s, nil
}

// GetStringOr returns the string stored at key, or def when the key is absent.
func (d *Data) GetStringOr(key string, def string) (string, error) {
	if !d.Has(key) {
		return def, nil
	}
	return d.GetString(key)
}

// GetBytes returns the byte sequence stored at key.
func (d *Data) GetBytes(key string) ([]byte, error) {
	v, err := d.lookup(key, KindBytes)
	if err != nil {
		return nil, err
	}
	return v.raw, nil
}

// GetData returns the nested container stored at key.
func (d *Data) GetData(key string) (*Data, error) {
	v, err := d.lookup(key, KindData)
	if err != nil {
		return nil, err
	}
	return v.data, nil
}

// GetBoolList returns the boolean list at key, or nil when the key was never
// set. Absence and an explicitly set empty list are not distinguished.
func (d *Data) GetBoolList(key string) ([]bool, error) {
	v, ok, err := d.lookupList(key, KindBoolList)
	if err != nil || !ok {
		return nil, err
	}
	return v.bools, nil
}

// GetLongList returns the integer list at key, or nil when absent.
func (d *Data) GetLongList(key string) ([]int64, error) {
	v, ok, err := d.lookupList(key, KindLongList)
	if err != nil || !ok {
		return nil, err
	}
	return v.longs, nil
}

// GetDoubleList returns the float list at key, or nil when absent.
func (d *Data) GetDoubleList(key string) ([]float64, error) {
	v, ok, err := d.lookupList(key, KindDoubleList)
	if err != nil || !ok {
		return nil, err
	}
	return v.doubles, nil
}

// GetStringList returns the string list at key, or nil when absent.
func (d *Data) GetStringList(key string) ([]string, error) {
	v, ok, err := d.lookupList(key, KindStringList)
	if err != nil || !ok {
		return nil, err
	}
	return v.strs, nil
}

// GetDataList returns the nested-container list at key, or nil when absent.
func (d *Data) GetDataList(key string) ([]*Data, error) {
	v, ok, err := d.lookupList(key, KindDataList)
	if err != nil || !ok {
		return nil, err
	}
	return v.datas, nil
}

// Equal reports structural equality over (qualifiedName, full field mapping).
func (d *Data) Equal(other *Data) bool {
	if d == other {
		return true
	}
	if d == nil || other == nil {
		return false
	}
	if d.qualifiedName != other.qualifiedName || len(d.fields) != len(other.fields) {
		return false
	}
	for k, v := range d.fields {
		ov, ok := other.fields[k]
		if !ok || !v.equal(ov) {
			return false
		}
	}
	return true
}

func (v fieldValue) equal(o fieldValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindLong:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytesEqual(v.raw, o.raw)
	case KindData:
		return v.data.Equal(o.data)
	case KindBoolList:
		if len(v.bools) != len(o.bools) {
			return false
		}
		for i := range v.bools {
			if v.bools[i] != o.bools[i] {
				return false
			}
		}
		return true
	case KindLongList:
		if len(v.longs) != len(o.longs) {
			return false
		}
		for i := range v.longs {
			if v.longs[i] != o.longs[i] {
				return false
			}
		}
		return true
	case KindDoubleList:
		if len(v.doubles) != len(o.doubles) {
			return false
		}
		for i := range v.doubles {
			if v.doubles[i] != o.doubles[i] {
				return false
			}
		}
		return true
	case KindStringList:
		if len(v.strs) != len(o.strs) {
			return false
		}
		for i := range v.strs {
			if v.strs[i] != o.strs[i] {
				return false
			}
		}
		return true
	case KindDataList:
		if len(v.datas) != len(o.datas) {
			return false
		}
		for i := range v.datas {
			if !v.datas[i].Equal(o.datas[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Hash returns a structural hash consistent with Equal, so containers can be
// used as map keys through their digest.
func (d *Data) Hash() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(d.qualifiedName)
	for _, k := range d.Keys() {
		v := d.fields[k]
		_, _ = h.WriteString(k)
		var tag [1]byte
		tag[0] = byte(v.kind)
		_, _ = h.Write(tag[:])
		v.writeDigest(h)
	}
	return h.Sum64()
}

func (v fieldValue) writeDigest(h *xxhash.Digest) {
	var buf [8]byte
	switch v.kind {
	case KindBool:
		if v.b {
			buf[0] = 1
		}
		_, _ = h.Write(buf[:1])
	case KindLong:
		binary.LittleEndian.PutUint64(buf[:], uint64(v.i))
		_, _ = h.Write(buf[:])
	case KindDouble:
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.f))
		_, _ = h.Write(buf[:])
	case KindString:
		_, _ = h.WriteString(v.s)
	case KindBytes:
		_, _ = h.Write(v.raw)
	case KindData:
		binary.LittleEndian.PutUint64(buf[:], v.data.Hash())
		_, _ = h.Write(buf[:])
	case KindBoolList:
		for _, b := range v.bools {
			var e byte
			if b {
				e = 1
			}
			_, _ = h.Write([]byte{e})
		}
	case KindLongList:
		for _, i := range v.longs {
			binary.LittleEndian.PutUint64(buf[:], uint64(i))
			_, _ = h.Write(buf[:])
		}
	case KindDoubleList:
		for _, f := range v.doubles {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
			_, _ = h.Write(buf[:])
		}
	case KindStringList:
		for _, s := range v.strs {
			_, _ = h.WriteString(s)
			_, _ = h.Write([]byte{0})
		}
	case KindDataList:
		for _, d := range v.datas {
			binary.LittleEndian.PutUint64(buf[:], d.Hash())
			_, _ = h.Write(buf[:])
		}
	}
}

// String renders a compact diagnostic form; field order is sorted for
// deterministic output.
func (d *Data) String() string {
	s := "Data(" + d.qualifiedName + "){"
	for i, k := range d.Keys() {
		if i > 0 {
			s += ", "
		}
		s += k + ":" + d.fields[k].kind.String()
	}
	return s + "}"
}

// DataBuilder accumulates key/value pairs and produces an immutable Data.
// Setting a key twice overwrites the earlier value, whatever its kind.
type DataBuilder struct {
	qualifiedName string
	fields        map[string]fieldValue
}

// NewDataBuilder creates a builder for a container with the given qualified
// name. Pass "" for anonymous containers.
func NewDataBuilder(qualifiedName string) *DataBuilder {
	return &DataBuilder{
		qualifiedName: qualifiedName,
		fields:        make(map[string]fieldValue),
	}
}

func (b *DataBuilder) set(key string, v fieldValue) *DataBuilder {
	b.fields[key] = v
	return b
}

// SetBool stores a boolean at key.
func (b *DataBuilder) SetBool(key string, v bool) *DataBuilder {
	return b.set(key, fieldValue{kind: KindBool, b: v})
}

// SetLong stores a 64-bit integer at key.
func (b *DataBuilder) SetLong(key string, v int64) *DataBuilder {
	return b.set(key, fieldValue{kind: KindLong, i: v})
}

// SetDouble stores a 64-bit float at key.
func (b *DataBuilder) SetDouble(key string, v float64) *DataBuilder {
	return b.set(key, fieldValue{kind: KindDouble, f: v})
}

// SetString stores a string at key.
func (b *DataBuilder) SetString(key string, v string) *DataBuilder {
	return b.set(key, fieldValue{kind: KindString, s: v})
}

// SetBytes stores a byte sequence at key. The slice is copied.
func (b *DataBuilder) SetBytes(key string, v []byte) *DataBuilder {
	cp := make([]byte, len(v))
	copy(cp, v)
	return b.set(key, fieldValue{kind: KindBytes, raw: cp})
}

// SetData stores a nested container at key.
func (b *DataBuilder) SetData(key string, v *Data) *DataBuilder {
	if v == nil {
		v = Empty
	}
	return b.set(key, fieldValue{kind: KindData, data: v})
}

// SetBoolList stores a boolean list at key. The slice is copied.
func (b *DataBuilder) SetBoolList(key string, v []bool) *DataBuilder {
	cp := make([]bool, len(v))
	copy(cp, v)
	return b.set(key, fieldValue{kind: KindBoolList, bools: cp})
}

// SetLongList stores an integer list at key. The slice is copied.
func (b *DataBuilder) SetLongList(key string, v []int64) *DataBuilder {
	cp := make([]int64, len(v))
	copy(cp, v)
	return b.set(key, fieldValue{kind: KindLongList, longs: cp})
}

// SetDoubleList stores a float list at key. The slice is copied.
func (b *DataBuilder) SetDoubleList(key string, v []float64) *DataBuilder {
	cp := make([]float64, len(v))
	copy(cp, v)
	return b.set(key, fieldValue{kind: KindDoubleList, doubles: cp})
}

// SetStringList stores a string list at key. The slice is copied.
func (b *DataBuilder) SetStringList(key string, v []string) *DataBuilder {
	cp := make([]string, len(v))
	copy(cp, v)
	return b.set(key, fieldValue{kind: KindStringList, strs: cp})
}

// SetDataList stores a nested-container list at key. The slice is copied.
func (b *DataBuilder) SetDataList(key string, v []*Data) *DataBuilder {
	cp := make([]*Data, len(v))
	copy(cp, v)
	return b.set(key, fieldValue{kind: KindDataList, datas: cp})
}

// Build produces the immutable container. It never fails: shape validation
// against a schema is the dispatcher's job, not the container's.
func (b *DataBuilder) Build() *Data {
	if len(b.fields) == 0 && b.qualifiedName == "" {
		return Empty
	}
	fields := make(map[string]fieldValue, len(b.fields))
	for k, v := range b.fields {
		fields[k] = v
	}
	return &Data{qualifiedName: b.qualifiedName, fields: fields}
}
