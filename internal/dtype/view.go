package dtype

import "unsafe"

// View is a zero-copy accessor over one structured array's worth of bytes:
// `length` consecutive records of `dtype`, laid directly over buf. Views
// never own or copy buf; their lifetime is bounded by whatever scope holds
// the underlying slot memory (a Writer/Reader/Observer session, per
// spec §4.1 — "whose lifetime is bounded by the session scope").
type View struct {
	buf    []byte
	dtype  Dtype
	length int
}

// NewView wraps buf (which must be exactly length*dtype.Size bytes) as a
// structured array view.
func NewView(buf []byte, d Dtype, length int) View {
	if len(buf) != length*d.Size {
		panic("dtype: view buffer size does not match length*dtype.Size")
	}
	return View{buf: buf, dtype: d, length: length}
}

// Len returns the number of records in the view (spec's data_length).
func (v View) Len() int { return v.length }

// Dtype returns the view's structured record descriptor.
func (v View) Dtype() Dtype { return v.dtype }

func (v View) field(name string, elemIdx int) (Field, unsafe.Pointer) {
	if elemIdx < 0 || elemIdx >= v.length {
		panic("dtype: element index out of range")
	}
	fi := v.dtype.Index(name)
	f := v.dtype.Fields[fi]
	off := v.dtype.offsetFor(fi, elemIdx)
	return f, ptrAt(v.buf, off, f.Size)
}

func (v View) Int64(name string, elemIdx int) int64 {
	f, p := v.field(name, elemIdx)
	switch f.Code {
	case I8:
		return int64(*(*int8)(p))
	case I16:
		return int64(*(*int16)(p))
	case I32:
		return int64(*(*int32)(p))
	case I64:
		return *(*int64)(p)
	default:
		checkCode(f, I64)
		return 0
	}
}

func (v View) SetInt64(name string, elemIdx int, val int64) {
	f, p := v.field(name, elemIdx)
	switch f.Code {
	case I8:
		*(*int8)(p) = int8(val)
	case I16:
		*(*int16)(p) = int16(val)
	case I32:
		*(*int32)(p) = int32(val)
	case I64:
		*(*int64)(p) = val
	default:
		checkCode(f, I64)
	}
}

func (v View) Uint64(name string, elemIdx int) uint64 {
	f, p := v.field(name, elemIdx)
	switch f.Code {
	case U8:
		return uint64(*(*uint8)(p))
	case U16:
		return uint64(*(*uint16)(p))
	case U32:
		return uint64(*(*uint32)(p))
	case U64:
		return *(*uint64)(p)
	default:
		checkCode(f, U64)
		return 0
	}
}

func (v View) SetUint64(name string, elemIdx int, val uint64) {
	f, p := v.field(name, elemIdx)
	switch f.Code {
	case U8:
		*(*uint8)(p) = uint8(val)
	case U16:
		*(*uint16)(p) = uint16(val)
	case U32:
		*(*uint32)(p) = uint32(val)
	case U64:
		*(*uint64)(p) = val
	default:
		checkCode(f, U64)
	}
}

func (v View) Float32(name string, elemIdx int) float32 {
	f, p := v.field(name, elemIdx)
	checkCode(f, F32)
	return *(*float32)(p)
}

func (v View) SetFloat32(name string, elemIdx int, val float32) {
	f, p := v.field(name, elemIdx)
	checkCode(f, F32)
	*(*float32)(p) = val
}

func (v View) Float64(name string, elemIdx int) float64 {
	f, p := v.field(name, elemIdx)
	switch f.Code {
	case F32:
		return float64(*(*float32)(p))
	case F64:
		return *(*float64)(p)
	default:
		checkCode(f, F64)
		return 0
	}
}

func (v View) SetFloat64(name string, elemIdx int, val float64) {
	f, p := v.field(name, elemIdx)
	switch f.Code {
	case F32:
		*(*float32)(p) = float32(val)
	case F64:
		*(*float64)(p) = val
	default:
		checkCode(f, F64)
	}
}

// Bytes returns the raw, zero-copy byte slice for an Sn field's element —
// mutations through it write straight into the slot.
func (v View) Bytes(name string, elemIdx int) []byte {
	fi := v.dtype.Index(name)
	f := v.dtype.Fields[fi]
	checkCode(f, Bytes)
	off := v.dtype.offsetFor(fi, elemIdx)
	if off < 0 || off+f.Size > len(v.buf) {
		panic("dtype: field access out of bounds (corrupt slot or dtype mismatch)")
	}
	return v.buf[off : off+f.Size : off+f.Size]
}

// SetBytes copies val into an Sn field's element, zero-padding or
// truncating to the field's fixed length.
func (v View) SetBytes(name string, elemIdx int, val []byte) {
	dst := v.Bytes(name, elemIdx)
	n := copy(dst, val)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
