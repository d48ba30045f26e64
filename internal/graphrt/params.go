package graphrt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	ndarrayListMagic uint64 = 0xF7E58D4F05049CB7
	ndarrayMagic     uint64 = 0xDD5E40F096B4A13F

	// maxNdim bounds the rank accepted from a blob.
	maxNdim = 32
)

// Param is one named tensor of a parameter blob.
type Param struct {
	Name  string
	Array *NDArray
}

// LoadParamsBlob decodes an NDArray-list parameter blob, keeping the blob's order.
func LoadParamsBlob(blob []byte) ([]Param, error) {
	r := bytes.NewReader(blob)

	var header, reserved uint64
	if err := read(r, &header, &reserved); err != nil {
		return nil, err
	}
	if header != ndarrayListMagic {
		return nil, fmt.Errorf("%w: bad list magic 0x%016x", ErrInvalidParams, header)
	}

	var numNames uint64
	if err := read(r, &numNames); err != nil {
		return nil, err
	}
	if numNames > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: %d names in %d bytes", ErrInvalidParams, numNames, r.Len())
	}

	names := make([]string, 0, numNames)
	for range numNames {
		var n uint64
		if err := read(r, &n); err != nil {
			return nil, err
		}
		if n > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: name length %d exceeds blob", ErrInvalidParams, n)
		}

		name := make([]byte, n)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		names = append(names, string(name))
	}

	var numArrays uint64
	if err := read(r, &numArrays); err != nil {
		return nil, err
	}
	if numArrays != numNames {
		return nil, fmt.Errorf("%w: %d names for %d arrays", ErrInvalidParams, numNames, numArrays)
	}

	params := make([]Param, 0, numArrays)
	for _, name := range names {
		arr, err := readNDArray(r)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", name, err)
		}
		params = append(params, Param{Name: name, Array: arr})
	}

	return params, nil
}

// SaveParamsBlob encodes params in the NDArray-list format read by LoadParamsBlob.
func SaveParamsBlob(params []Param) ([]byte, error) {
	var buf bytes.Buffer

	write := func(vs ...any) {
		for _, v := range vs {
			// bytes.Buffer writes never fail.
			_ = binary.Write(&buf, binary.LittleEndian, v)
		}
	}

	write(ndarrayListMagic, uint64(0), uint64(len(params)))
	for _, p := range params {
		write(uint64(len(p.Name)))
		buf.WriteString(p.Name)
	}

	write(uint64(len(params)))
	for _, p := range params {
		a := p.Array
		n := a.NumBytes()
		if int64(len(a.Data)) < n {
			return nil, fmt.Errorf("param %q: %w: need %d bytes", p.Name, ErrBufferTooSmall, n)
		}

		write(ndarrayMagic, uint64(0))
		write(int32(a.Device.Type), a.Device.ID)
		write(int32(len(a.Shape)))
		write(uint8(a.DType.Code), a.DType.Bits, a.DType.Lanes)
		write(a.Shape)
		write(n)
		buf.Write(a.Data[:n])
	}

	return buf.Bytes(), nil
}

func readNDArray(r *bytes.Reader) (*NDArray, error) {
	var magic, reserved uint64
	if err := read(r, &magic, &reserved); err != nil {
		return nil, err
	}
	if magic != ndarrayMagic {
		return nil, fmt.Errorf("%w: bad array magic 0x%016x", ErrInvalidParams, magic)
	}

	var (
		devType, devID int32
		ndim           int32
		code, bits     uint8
		lanes          uint16
	)
	if err := read(r, &devType, &devID, &ndim, &code, &bits, &lanes); err != nil {
		return nil, err
	}
	if ndim < 0 || ndim > maxNdim {
		return nil, fmt.Errorf("%w: ndim %d", ErrInvalidParams, ndim)
	}

	shape := make([]int64, ndim)
	if err := read(r, shape); err != nil {
		return nil, err
	}

	// Parameters are always materialized on the host.
	arr := &NDArray{
		Shape:  shape,
		DType:  DataType{Code: DataTypeCode(code), Bits: bits, Lanes: lanes},
		Device: CPU,
	}

	want, ok := checkedBytes(shape, int64(arr.DType.Size()))
	if !ok {
		return nil, fmt.Errorf("%w: invalid shape %v", ErrInvalidParams, shape)
	}

	var size int64
	if err := read(r, &size); err != nil {
		return nil, err
	}
	if size < 0 || size != want {
		return nil, fmt.Errorf("%w: data size %d, shape %v %s needs %d", ErrInvalidParams, size, shape, arr.DType, want)
	}
	if size > int64(r.Len()) {
		return nil, fmt.Errorf("%w: data size %d exceeds blob", ErrInvalidParams, size)
	}

	arr.Data = make([]byte, size)
	if _, err := io.ReadFull(r, arr.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	return arr, nil
}

func read(r io.Reader, vs ...any) error {
	for _, v := range vs {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
	}
	return nil
}
