package graphrt

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/x448/float16"
)

// DeviceType identifies the kind of device a tensor lives on.
type DeviceType int32

// DeviceCPU is the host CPU.
const DeviceCPU DeviceType = 1

// Device is a device type and ordinal.
type Device struct {
	Type DeviceType
	ID   int32
}

// CPU is the default execution device.
var CPU = Device{Type: DeviceCPU, ID: 0}

// TensorInfo is the shape and element type of a tensor, detached from its data.
type TensorInfo struct {
	Shape []int64  `json:"shape"`
	DType DataType `json:"dtype"`
}

// NumElements returns the product of the shape entries.
func (ti TensorInfo) NumElements() int64 {
	return numElements(ti.Shape)
}

// Ndim returns the number of dimensions.
func (ti TensorInfo) Ndim() int {
	return len(ti.Shape)
}

// NDArray is a dense, row-major tensor. Data holds the little-endian element
// bytes and may alias storage owned by a runtime.
type NDArray struct {
	Data   []byte
	Shape  []int64
	DType  DataType
	Device Device
}

// NewNDArray allocates a zeroed tensor.
func NewNDArray(shape []int64, dtype DataType, dev Device) *NDArray {
	return &NDArray{
		Data:   make([]byte, numElements(shape)*int64(dtype.Size())),
		Shape:  slices.Clone(shape),
		DType:  dtype,
		Device: dev,
	}
}

// NumElements returns the product of the shape entries.
func (a *NDArray) NumElements() int64 {
	return numElements(a.Shape)
}

// NumBytes returns the number of bytes the tensor content occupies.
func (a *NDArray) NumBytes() int64 {
	return a.NumElements() * int64(a.DType.Size())
}

// Info returns a copy of the tensor's shape and dtype.
func (a *NDArray) Info() TensorInfo {
	return TensorInfo{Shape: slices.Clone(a.Shape), DType: a.DType}
}

// CopyFrom copies the content of src into a. Both tensors must have the same
// dtype and the same number of bytes.
func (a *NDArray) CopyFrom(src *NDArray) error {
	if src.DType != a.DType {
		return fmt.Errorf("%w: dtype %s, want %s", ErrShapeMismatch, src.DType, a.DType)
	}

	n := a.NumBytes()
	if src.NumBytes() != n {
		return fmt.Errorf("%w: shape %v, want %v", ErrShapeMismatch, src.Shape, a.Shape)
	}
	if int64(len(src.Data)) < n || int64(len(a.Data)) < n {
		return fmt.Errorf("%w: need %d bytes", ErrBufferTooSmall, n)
	}

	copy(a.Data[:n], src.Data[:n])
	return nil
}

// CopyTo copies the content of a into dst.
func (a *NDArray) CopyTo(dst *NDArray) error {
	return dst.CopyFrom(a)
}

// WriteFloat32 converts src to the tensor's dtype and stores it. src must hold
// at least NumElements*Lanes values.
func (a *NDArray) WriteFloat32(src []float32) error {
	n := a.scalars()
	if int64(len(src)) < n {
		return fmt.Errorf("%w: got %d values, need %d", ErrBufferTooSmall, len(src), n)
	}

	size := int64(a.DType.Size())
	if a.DType.Lanes > 1 {
		size /= int64(a.DType.Lanes)
	}
	if int64(len(a.Data)) < n*size {
		return fmt.Errorf("%w: tensor holds %d bytes", ErrBufferTooSmall, len(a.Data))
	}

	put, err := scalarWriter(a.DType)
	if err != nil {
		return err
	}

	for i := range n {
		put(a.Data[i*size:], src[i])
	}
	return nil
}

// ReadFloat32 converts the tensor content to float32 and stores it in dst.
// dst must hold at least NumElements*Lanes values.
func (a *NDArray) ReadFloat32(dst []float32) error {
	n := a.scalars()
	if int64(len(dst)) < n {
		return fmt.Errorf("%w: got %d values, need %d", ErrBufferTooSmall, len(dst), n)
	}

	size := int64(a.DType.Size())
	if a.DType.Lanes > 1 {
		size /= int64(a.DType.Lanes)
	}
	if int64(len(a.Data)) < n*size {
		return fmt.Errorf("%w: tensor holds %d bytes", ErrBufferTooSmall, len(a.Data))
	}

	get, err := scalarReader(a.DType)
	if err != nil {
		return err
	}

	for i := range n {
		dst[i] = get(a.Data[i*size:])
	}
	return nil
}

// scalars is the number of scalar values, counting vector lanes.
func (a *NDArray) scalars() int64 {
	lanes := int64(a.DType.Lanes)
	if lanes == 0 {
		lanes = 1
	}
	return a.NumElements() * lanes
}

// maxTensorBytes bounds the storage a single shape may describe.
const maxTensorBytes = 1 << 40

// checkedBytes returns the byte size of shape with elemSize-byte elements.
// It fails on a negative dimension or a size above maxTensorBytes.
func checkedBytes(shape []int64, elemSize int64) (int64, bool) {
	n := elemSize
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		if d > 0 && n > maxTensorBytes/d {
			return 0, false
		}
		n *= d
	}
	return n, n <= maxTensorBytes
}

func numElements(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

func scalarWriter(t DataType) (func([]byte, float32), error) {
	le := binary.LittleEndian

	switch {
	case t.Code == DataTypeFloat && t.Bits == 32:
		return func(b []byte, v float32) { le.PutUint32(b, math.Float32bits(v)) }, nil
	case t.Code == DataTypeFloat && t.Bits == 64:
		return func(b []byte, v float32) { le.PutUint64(b, math.Float64bits(float64(v))) }, nil
	case t.Code == DataTypeFloat && t.Bits == 16:
		return func(b []byte, v float32) { le.PutUint16(b, float16.Fromfloat32(v).Bits()) }, nil
	case t.Code == DataTypeBFloat && t.Bits == 16:
		return func(b []byte, v float32) { le.PutUint16(b, uint16(math.Float32bits(v)>>16)) }, nil
	case t.Code == DataTypeInt && t.Bits == 8:
		return func(b []byte, v float32) { b[0] = byte(int8(v)) }, nil
	case t.Code == DataTypeInt && t.Bits == 16:
		return func(b []byte, v float32) { le.PutUint16(b, uint16(int16(v))) }, nil
	case t.Code == DataTypeInt && t.Bits == 32:
		return func(b []byte, v float32) { le.PutUint32(b, uint32(int32(v))) }, nil
	case t.Code == DataTypeInt && t.Bits == 64:
		return func(b []byte, v float32) { le.PutUint64(b, uint64(int64(v))) }, nil
	case t.Code == DataTypeUInt && (t.Bits == 8 || t.Bits == 1):
		return func(b []byte, v float32) { b[0] = uint8(v) }, nil
	case t.Code == DataTypeUInt && t.Bits == 16:
		return func(b []byte, v float32) { le.PutUint16(b, uint16(v)) }, nil
	case t.Code == DataTypeUInt && t.Bits == 32:
		return func(b []byte, v float32) { le.PutUint32(b, uint32(v)) }, nil
	case t.Code == DataTypeUInt && t.Bits == 64:
		return func(b []byte, v float32) { le.PutUint64(b, uint64(v)) }, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrDTypeUnsupported, t)
}

func scalarReader(t DataType) (func([]byte) float32, error) {
	le := binary.LittleEndian

	switch {
	case t.Code == DataTypeFloat && t.Bits == 32:
		return func(b []byte) float32 { return math.Float32frombits(le.Uint32(b)) }, nil
	case t.Code == DataTypeFloat && t.Bits == 64:
		return func(b []byte) float32 { return float32(math.Float64frombits(le.Uint64(b))) }, nil
	case t.Code == DataTypeFloat && t.Bits == 16:
		return func(b []byte) float32 { return float16.Frombits(le.Uint16(b)).Float32() }, nil
	case t.Code == DataTypeBFloat && t.Bits == 16:
		return func(b []byte) float32 { return math.Float32frombits(uint32(le.Uint16(b)) << 16) }, nil
	case t.Code == DataTypeInt && t.Bits == 8:
		return func(b []byte) float32 { return float32(int8(b[0])) }, nil
	case t.Code == DataTypeInt && t.Bits == 16:
		return func(b []byte) float32 { return float32(int16(le.Uint16(b))) }, nil
	case t.Code == DataTypeInt && t.Bits == 32:
		return func(b []byte) float32 { return float32(int32(le.Uint32(b))) }, nil
	case t.Code == DataTypeInt && t.Bits == 64:
		return func(b []byte) float32 { return float32(int64(le.Uint64(b))) }, nil
	case t.Code == DataTypeUInt && (t.Bits == 8 || t.Bits == 1):
		return func(b []byte) float32 { return float32(b[0]) }, nil
	case t.Code == DataTypeUInt && t.Bits == 16:
		return func(b []byte) float32 { return float32(le.Uint16(b)) }, nil
	case t.Code == DataTypeUInt && t.Bits == 32:
		return func(b []byte) float32 { return float32(le.Uint32(b)) }, nil
	case t.Code == DataTypeUInt && t.Bits == 64:
		return func(b []byte) float32 { return float32(le.Uint64(b)) }, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrDTypeUnsupported, t)
}
