package sampenc

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdsn-go/mseedpack/internal/byteorder"
)

func TestEncodeText(t *testing.T) {
	out := make([]byte, 10)
	consumed, written := EncodeText([]byte("hello world"), 5, out)
	assert.Equal(t, 5, consumed)
	assert.Equal(t, 5, written)
	assert.Equal(t, "hello", string(out[:written]))
}

func TestEncodeTextBoundedByDest(t *testing.T) {
	out := make([]byte, 3)
	consumed, written := EncodeText([]byte("hello"), -1, out)
	assert.Equal(t, 3, consumed)
	assert.Equal(t, 3, written)
}

func TestEncodeInt16RoundTrip(t *testing.T) {
	out := make([]byte, 8)
	consumed, written, err := EncodeInt16([]int32{1, -2, 32767, -32768}, -1, byteorder.BigEndian, out)
	require.NoError(t, err)
	assert.Equal(t, 4, consumed)
	assert.Equal(t, 8, written)
	assert.Equal(t, []byte{0x00, 0x01, 0xff, 0xfe, 0x7f, 0xff, 0x80, 0x00}, out)
}

func TestEncodeInt16OutOfRange(t *testing.T) {
	out := make([]byte, 4)
	_, _, err := EncodeInt16([]int32{40000}, -1, byteorder.BigEndian, out)
	assert.ErrorIs(t, err, ErrSampleOutOfRange)
}

func TestEncodeInt32LittleEndian(t *testing.T) {
	out := make([]byte, 4)
	consumed, written := EncodeInt32([]int32{0x01020304}, -1, byteorder.LittleEndian, out)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 4, written)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, out)
}

func TestEncodeFloat32BigEndian(t *testing.T) {
	out := make([]byte, 4)
	consumed, written := EncodeFloat32([]float32{1.0}, -1, byteorder.BigEndian, out)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 4, written)
	assert.Equal(t, []byte{0x3f, 0x80, 0x00, 0x00}, out)
}

func TestEncodeFloat64RoundTrip(t *testing.T) {
	out := make([]byte, 16)
	consumed, written := EncodeFloat64([]float64{1.5, -2.5}, -1, byteorder.LittleEndian, out)
	assert.Equal(t, 2, consumed)
	assert.Equal(t, 16, written)
	assert.Equal(t, 1.5, math.Float64frombits(binary.LittleEndian.Uint64(out[0:8])))
	assert.Equal(t, -2.5, math.Float64frombits(binary.LittleEndian.Uint64(out[8:16])))
}

func TestClampCountBoundedByMaxSamplesAndCap(t *testing.T) {
	out := make([]byte, 4)
	consumed, written := EncodeInt32([]int32{1, 2, 3, 4, 5}, 3, byteorder.BigEndian, out)
	assert.Equal(t, 1, consumed) // cap only fits one int32
	assert.Equal(t, 4, written)
}
