// Package dtype implements the structured record descriptor and zero-copy
// field views from spec §6: an ordered list of named, fixed-width scalar
// fields, with field access computed once at buffer-construction time and
// applied directly over slot bytes thereafter — no allocation, no copy.
//
// This mirrors numpy's structured dtype (the type the original Python
// implementation builds its slots from) closely enough to serve the same
// role, expressed the way the grpc-go shared-memory transport expresses its
// own fixed binary layouts: typed accessors computed from byte offsets via
// unsafe.Pointer, rather than encoding/binary calls on every field access.
package dtype

import (
	"fmt"
	"unsafe"
)

// Code identifies a field's scalar type.
type Code uint8

const (
	I8 Code = iota
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
	Bytes // fixed-length byte string, "Sn"
)

func (c Code) size(n int) int {
	switch c {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case I64, U64, F64:
		return 8
	case Bytes:
		return n
	default:
		panic(fmt.Sprintf("dtype: unknown scalar code %d", c))
	}
}

func (c Code) String() string {
	switch c {
	case I8:
		return "i1"
	case U8:
		return "u1"
	case I16:
		return "i2"
	case U16:
		return "u2"
	case I32:
		return "i4"
	case U32:
		return "u4"
	case I64:
		return "i8"
	case U64:
		return "u8"
	case F32:
		return "f4"
	case F64:
		return "f8"
	case Bytes:
		return "Sn"
	default:
		return "?"
	}
}

// FieldSpec describes one named field in the order it should appear in the
// record. Len is only meaningful for Bytes (the fixed string length n in
// "Sn"); it is ignored for scalar codes.
type FieldSpec struct {
	Name string
	Code Code
	Len  int
}

// Field is a FieldSpec resolved to its byte offset within one record.
type Field struct {
	Name   string
	Code   Code
	Len    int
	Offset int
	Size   int
}

// Dtype is an ordered, fixed-layout structured record descriptor: the
// data_dtype or metadata_dtype of spec §3/§6.
type Dtype struct {
	Fields []Field
	Size   int // total bytes per record

	byName map[string]int
}

// New validates and lays out a structured dtype from an ordered field list.
// Fields are packed tightly with no padding (spec §3: "no padding between
// data and metadata", which this generalizes to no padding between any two
// fields). Returns a ConfigError-flavored error for zero-size records,
// duplicate field names, or an empty field list — raised at buffer
// construction time only, per spec §7.
func New(fields []FieldSpec) (Dtype, error) {
	if len(fields) == 0 {
		return Dtype{}, fmt.Errorf("dtype: at least one field is required")
	}

	resolved := make([]Field, len(fields))
	byName := make(map[string]int, len(fields))
	offset := 0
	for i, f := range fields {
		if f.Name == "" {
			return Dtype{}, fmt.Errorf("dtype: field %d has an empty name", i)
		}
		if _, dup := byName[f.Name]; dup {
			return Dtype{}, fmt.Errorf("dtype: duplicate field name %q", f.Name)
		}
		if f.Code == Bytes && f.Len <= 0 {
			return Dtype{}, fmt.Errorf("dtype: field %q is Sn but has non-positive length %d", f.Name, f.Len)
		}

		size := f.Code.size(f.Len)
		resolved[i] = Field{Name: f.Name, Code: f.Code, Len: f.Len, Offset: offset, Size: size}
		byName[f.Name] = i
		offset += size
	}

	if offset == 0 {
		return Dtype{}, fmt.Errorf("dtype: resolved record size is zero")
	}

	return Dtype{Fields: resolved, Size: offset, byName: byName}, nil
}

// Index returns the position of a named field, panicking if it does not
// exist: an unknown field name is a programmer error (InvariantViolation,
// spec §7), not a recoverable one, matching the teacher's "panic on
// misuse" convention (e.g. MPMC's power-of-two precondition panics).
func (d Dtype) Index(name string) int {
	i, ok := d.byName[name]
	if !ok {
		panic(fmt.Sprintf("dtype: unknown field %q", name))
	}
	return i
}

// Has reports whether the dtype defines a field with the given name.
func (d Dtype) Has(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// offsetFor computes the byte offset of field fi within the elemIdx'th
// record of a data array laid out as elemIdx*d.Size + field.Offset, as
// specified for structured arrays of length data_length (spec §3/§6).
func (d Dtype) offsetFor(fi, elemIdx int) int {
	return elemIdx*d.Size + d.Fields[fi].Offset
}

func checkCode(f Field, want Code) {
	if f.Code != want {
		panic(fmt.Sprintf("dtype: field %q is %s, not %s", f.Name, f.Code, want))
	}
}

// ptrAt returns a pointer to the byte at the given offset within buf,
// bounds-checked; callers then cast it to the scalar type they expect.
func ptrAt(buf []byte, off, size int) unsafe.Pointer {
	if off < 0 || size < 0 || off+size > len(buf) {
		panic("dtype: field access out of bounds (corrupt slot or dtype mismatch)")
	}
	return unsafe.Pointer(&buf[off])
}
