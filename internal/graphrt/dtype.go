package graphrt

import (
	"fmt"
	"strconv"
	"strings"
)

// DataTypeCode is the type class of a tensor element.
type DataTypeCode uint8

const (
	DataTypeInt    DataTypeCode = 0
	DataTypeUInt   DataTypeCode = 1
	DataTypeFloat  DataTypeCode = 2
	DataTypeBFloat DataTypeCode = 4
)

// DataType describes a tensor element: type class, bit width and vector lanes.
type DataType struct {
	Code  DataTypeCode
	Bits  uint8
	Lanes uint16
}

// Common data types.
var (
	Float32  = DataType{Code: DataTypeFloat, Bits: 32, Lanes: 1}
	Float64  = DataType{Code: DataTypeFloat, Bits: 64, Lanes: 1}
	Float16  = DataType{Code: DataTypeFloat, Bits: 16, Lanes: 1}
	BFloat16 = DataType{Code: DataTypeBFloat, Bits: 16, Lanes: 1}
	Int8     = DataType{Code: DataTypeInt, Bits: 8, Lanes: 1}
	Int32    = DataType{Code: DataTypeInt, Bits: 32, Lanes: 1}
	Int64    = DataType{Code: DataTypeInt, Bits: 64, Lanes: 1}
	UInt8    = DataType{Code: DataTypeUInt, Bits: 8, Lanes: 1}
	Bool     = DataType{Code: DataTypeUInt, Bits: 1, Lanes: 1}
)

// ParseDataType parses names such as "float32", "int8", "uint8", "bfloat16",
// "bool" and vector forms like "float32x4".
func ParseDataType(s string) (DataType, error) {
	if s == "bool" {
		return Bool, nil
	}

	name := s
	lanes := uint64(1)
	if i := strings.LastIndexByte(s, 'x'); i > 0 {
		n, err := strconv.ParseUint(s[i+1:], 10, 16)
		if err != nil {
			return DataType{}, fmt.Errorf("%w: %q", ErrDTypeUnsupported, s)
		}
		name, lanes = s[:i], n
	}

	var t DataType
	var rest string
	switch {
	case strings.HasPrefix(name, "bfloat"):
		t.Code, rest = DataTypeBFloat, name[len("bfloat"):]
	case strings.HasPrefix(name, "float"):
		t.Code, rest = DataTypeFloat, name[len("float"):]
	case strings.HasPrefix(name, "uint"):
		t.Code, rest = DataTypeUInt, name[len("uint"):]
	case strings.HasPrefix(name, "int"):
		t.Code, rest = DataTypeInt, name[len("int"):]
	default:
		return DataType{}, fmt.Errorf("%w: %q", ErrDTypeUnsupported, s)
	}

	bits, err := strconv.ParseUint(rest, 10, 8)
	if err != nil || bits == 0 {
		return DataType{}, fmt.Errorf("%w: %q", ErrDTypeUnsupported, s)
	}

	t.Bits = uint8(bits)
	t.Lanes = uint16(lanes)
	return t, nil
}

// String returns the canonical name of the type.
func (t DataType) String() string {
	if t == Bool {
		return "bool"
	}

	var name string
	switch t.Code {
	case DataTypeInt:
		name = "int"
	case DataTypeUInt:
		name = "uint"
	case DataTypeFloat:
		name = "float"
	case DataTypeBFloat:
		name = "bfloat"
	default:
		name = fmt.Sprintf("code%d_", t.Code)
	}

	name += strconv.Itoa(int(t.Bits))
	if t.Lanes > 1 {
		name += "x" + strconv.Itoa(int(t.Lanes))
	}
	return name
}

// Size returns the number of bytes one element occupies.
func (t DataType) Size() int {
	lanes := int(t.Lanes)
	if lanes == 0 {
		lanes = 1
	}
	return (int(t.Bits)*lanes + 7) / 8
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(text []byte) error {
	parsed, err := ParseDataType(string(text))
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}
