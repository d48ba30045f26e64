package graphrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataType(t *testing.T) {
	tests := []struct {
		in   string
		want DataType
		size int
	}{
		{"float32", Float32, 4},
		{"float16", Float16, 2},
		{"bfloat16", BFloat16, 2},
		{"float64", Float64, 8},
		{"int8", Int8, 1},
		{"int64", Int64, 8},
		{"uint8", UInt8, 1},
		{"bool", Bool, 1},
		{"float32x4", DataType{Code: DataTypeFloat, Bits: 32, Lanes: 4}, 16},
	}

	for _, tc := range tests {
		got, err := ParseDataType(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.size, got.Size(), tc.in)
		assert.Equal(t, tc.in, got.String())
	}
}

func TestParseDataType_Invalid(t *testing.T) {
	for _, in := range []string{"", "float", "complex64", "int0", "float32xq"} {
		_, err := ParseDataType(in)
		assert.ErrorIs(t, err, ErrDTypeUnsupported, in)
	}
}

func TestDataType_TextRoundTrip(t *testing.T) {
	text, err := Float16.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "float16", string(text))

	var dt DataType
	require.NoError(t, dt.UnmarshalText([]byte("int32")))
	assert.Equal(t, Int32, dt)
	assert.Error(t, dt.UnmarshalText([]byte("nope")))
}
