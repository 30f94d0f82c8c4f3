// Package ndarray implements typed numeric arrays and their self-describing
// binary serialization, plus named array collections and image helpers.
//
// An encoded array carries its element type and shape, so it can be
// reconstructed without external metadata. The binary layout follows the
// store's little-endian, length-prefixed conventions.
package ndarray

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// DType is an array element type. The set is closed.
type DType uint8

const (
	Float32 DType = iota + 1
	Float64
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
)

var dtypeInfo = map[DType]struct {
	name string
	size int
}{
	Float32: {"float32", 4},
	Float64: {"float64", 8},
	Int8:    {"int8", 1},
	Int16:   {"int16", 2},
	Int32:   {"int32", 4},
	Int64:   {"int64", 8},
	Uint8:   {"uint8", 1},
	Uint16:  {"uint16", 2},
	Uint32:  {"uint32", 4},
	Uint64:  {"uint64", 8},
}

// String returns the dtype name.
func (d DType) String() string {
	if info, ok := dtypeInfo[d]; ok {
		return info.name
	}
	return fmt.Sprintf("DType(%d)", uint8(d))
}

// ItemSize returns the element size in bytes.
func (d DType) ItemSize() int {
	return dtypeInfo[d].size
}

// Valid reports whether d is a member of the closed dtype set.
func (d DType) Valid() bool {
	_, ok := dtypeInfo[d]
	return ok
}

// Array is a typed numeric array: element type, shape, and raw little-endian
// element bytes in row-major order.
type Array struct {
	dtype DType
	shape []int
	data  []byte
}

// New creates an array from raw element bytes.
func New(dtype DType, shape []int, data []byte) (*Array, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("invalid dtype %d", uint8(dtype))
	}
	size := 1
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("negative dimension %d", dim)
		}
		size *= dim
	}
	if want := size * dtype.ItemSize(); len(data) != want {
		return nil, fmt.Errorf("data length %d does not match shape %v of dtype %s (want %d)", len(data), shape, dtype, want)
	}
	return &Array{dtype: dtype, shape: slices.Clone(shape), data: data}, nil
}

// FromFloat32 creates a float32 array.
func FromFloat32(shape []int, values []float32) (*Array, error) {
	data := make([]byte, 0, len(values)*4)
	for _, v := range values {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	return New(Float32, shape, data)
}

// FromFloat64 creates a float64 array.
func FromFloat64(shape []int, values []float64) (*Array, error) {
	data := make([]byte, 0, len(values)*8)
	for _, v := range values {
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
	}
	return New(Float64, shape, data)
}

// FromInt64 creates an int64 array.
func FromInt64(shape []int, values []int64) (*Array, error) {
	data := make([]byte, 0, len(values)*8)
	for _, v := range values {
		data = binary.LittleEndian.AppendUint64(data, uint64(v))
	}
	return New(Int64, shape, data)
}

// DType returns the element type.
func (a *Array) DType() DType {
	return a.dtype
}

// Shape returns the array dimensions.
func (a *Array) Shape() []int {
	return slices.Clone(a.shape)
}

// NDim returns the number of dimensions.
func (a *Array) NDim() int {
	return len(a.shape)
}

// Size returns the total element count.
func (a *Array) Size() int {
	size := 1
	for _, dim := range a.shape {
		size *= dim
	}
	return size
}

// Bytes returns the raw element bytes.
func (a *Array) Bytes() []byte {
	return a.data
}

// At returns the flat element at index i, widened to float64.
func (a *Array) At(i int) float64 {
	off := i * a.dtype.ItemSize()
	switch a.dtype {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(a.data[off:])))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(a.data[off:]))
	case Int8:
		return float64(int8(a.data[off]))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(a.data[off:])))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(a.data[off:])))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(a.data[off:])))
	case Uint8:
		return float64(a.data[off])
	case Uint16:
		return float64(binary.LittleEndian.Uint16(a.data[off:]))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(a.data[off:]))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(a.data[off:]))
	}
	panic(fmt.Sprintf("invalid dtype %d", uint8(a.dtype)))
}

// Float64s returns all elements widened to float64.
func (a *Array) Float64s() []float64 {
	out := make([]float64, a.Size())
	for i := range out {
		out[i] = a.At(i)
	}
	return out
}

// Nested returns the values as nested slices following the shape, ready for
// JSON encoding. A rank-0 array yields its single scalar.
func (a *Array) Nested() any {
	values := a.Float64s()
	if len(a.shape) == 0 {
		return values[0]
	}
	return nest(values, a.shape)
}

func nest(values []float64, shape []int) any {
	if len(shape) == 1 {
		return values
	}
	stride := len(values) / shape[0]
	out := make([]any, shape[0])
	for i := range out {
		out[i] = nest(values[i*stride:(i+1)*stride], shape[1:])
	}
	return out
}

// Metadata is the summary description of a single array.
//
// Min, Mean, Max, and Sum are computed over all elements and are absent when
// the array is empty.
type Metadata struct {
	DType string   `json:"dtype"`
	NDim  int      `json:"ndim"`
	Shape []int    `json:"shape"`
	Size  int      `json:"size"`
	Min   *float64 `json:"min,omitempty"`
	Mean  *float64 `json:"mean,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Sum   *float64 `json:"sum,omitempty"`
}

// Metadata derives the array's summary description.
func (a *Array) Metadata() Metadata {
	md := Metadata{
		DType: a.dtype.String(),
		NDim:  a.NDim(),
		Shape: a.Shape(),
		Size:  a.Size(),
	}
	if md.Size == 0 {
		return md
	}
	minV := a.At(0)
	maxV := minV
	sum := 0.0
	for i := 0; i < md.Size; i++ {
		v := a.At(i)
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
		sum += v
	}
	mean := sum / float64(md.Size)
	md.Min = &minV
	md.Mean = &mean
	md.Max = &maxV
	md.Sum = &sum
	return md
}
