package graphrt

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsBlob_RoundTrip(t *testing.T) {
	w := NewNDArray([]int64{2, 2}, Float32, CPU)
	require.NoError(t, w.WriteFloat32([]float32{1, 2, 3, 4}))
	b := NewNDArray([]int64{2}, Float16, CPU)
	require.NoError(t, b.WriteFloat32([]float32{0.5, -1}))

	blob, err := SaveParamsBlob([]Param{{Name: "w", Array: w}, {Name: "b", Array: b}})
	require.NoError(t, err)

	assert.Equal(t, ndarrayListMagic, binary.LittleEndian.Uint64(blob))

	params, err := LoadParamsBlob(blob)
	require.NoError(t, err)
	require.Len(t, params, 2)

	assert.Equal(t, "w", params[0].Name)
	assert.Equal(t, []int64{2, 2}, params[0].Array.Shape)
	assert.Equal(t, Float32, params[0].Array.DType)
	assert.Equal(t, w.Data, params[0].Array.Data)

	assert.Equal(t, "b", params[1].Name)
	assert.Equal(t, Float16, params[1].Array.DType)
	assert.Equal(t, b.Data, params[1].Array.Data)
}

func TestLoadParamsBlob_Invalid(t *testing.T) {
	w := NewNDArray([]int64{3}, Float32, CPU)
	blob, err := SaveParamsBlob([]Param{{Name: "w", Array: w}})
	require.NoError(t, err)

	badMagic := append([]byte(nil), blob...)
	badMagic[0] ^= 0xff

	tests := map[string][]byte{
		"empty":     nil,
		"bad magic": badMagic,
		"truncated": blob[:len(blob)-4],
	}

	for name, data := range tests {
		_, err := LoadParamsBlob(data)
		assert.ErrorIs(t, err, ErrInvalidParams, name)
	}
}

func TestLoadParamsBlob_InvalidShape(t *testing.T) {
	arr := NewNDArray([]int64{1, 4}, Float32, CPU)
	blob, err := SaveParamsBlob([]Param{{Name: "w", Array: arr}})
	require.NoError(t, err)

	// patch rewrites the shape and the data size that follows it.
	patch := func(dims [2]int64, size int64) []byte {
		var old, repl bytes.Buffer
		require.NoError(t, binary.Write(&old, binary.LittleEndian, []int64{1, 4, 16}))
		require.NoError(t, binary.Write(&repl, binary.LittleEndian, []int64{dims[0], dims[1], size}))

		i := bytes.Index(blob, old.Bytes())
		require.GreaterOrEqual(t, i, 0)
		out := append([]byte(nil), blob...)
		copy(out[i:], repl.Bytes())
		return out
	}

	tests := map[string][]byte{
		"negative dims":  patch([2]int64{-1, -4}, 16),
		"negative size":  patch([2]int64{1, 4}, -16),
		"overflow":       patch([2]int64{1 << 40, 1 << 40}, 0),
		"size too large": patch([2]int64{1, 4}, 32),
	}

	for name, data := range tests {
		assert.NotPanics(t, func() {
			_, err := LoadParamsBlob(data)
			assert.ErrorIs(t, err, ErrInvalidParams, name)
		}, name)
	}
}

func TestSaveParamsBlob_ShortData(t *testing.T) {
	arr := &NDArray{Shape: []int64{4}, DType: Float32, Data: make([]byte, 4)}

	_, err := SaveParamsBlob([]Param{{Name: "w", Array: arr}})
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}
