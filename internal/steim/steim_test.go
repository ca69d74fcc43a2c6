package steim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode1SingleFrameSmallDiffs(t *testing.T) {
	samples := []int32{100, 101, 102, 103, 104}
	dst := make([]byte, 64)
	consumed, written, err := Encode1(samples, -1, dst)
	require.NoError(t, err)
	assert.Equal(t, 5, consumed)
	assert.Equal(t, 64, written)

	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, dst[0:4], "control word: slot 3 uses the 4-diffs/8-bit code")
	assert.Equal(t, []byte{0, 0, 0, 100}, dst[4:8], "W0 forward integration constant")
	assert.Equal(t, []byte{0, 0, 0, 104}, dst[8:12], "Wn reverse integration constant")
	assert.Equal(t, []byte{1, 1, 1, 1}, dst[12:16], "four 8-bit differences of 1")
}

func TestEncode1SingleSample(t *testing.T) {
	dst := make([]byte, 64)
	consumed, written, err := Encode1([]int32{42}, -1, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 64, written)
	assert.Equal(t, []byte{0, 0, 0, 42}, dst[4:8])
	assert.Equal(t, []byte{0, 0, 0, 42}, dst[8:12])
}

func TestEncode1BufferTooSmall(t *testing.T) {
	_, _, err := Encode1([]int32{1, 2, 3}, -1, make([]byte, 32))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestEncode1TruncatesAtFrameCapacity(t *testing.T) {
	// 61 samples rising by one: one frame holds at most 53 Steim-1 samples
	// (13 data words * 4 diffs/word + 1 forward constant), so consumption
	// must stop one sample short of the full input.
	samples := make([]int32, 61)
	for i := range samples {
		samples[i] = int32(i)
	}
	dst := make([]byte, 64)
	consumed, written, err := Encode1(samples, -1, dst)
	require.NoError(t, err)
	assert.Less(t, consumed, len(samples))
	assert.Equal(t, 64, written)
}

func TestEncode2SingleFrameZeroDiffs(t *testing.T) {
	samples := []int32{50, 50, 50, 50, 50, 50, 50, 50}
	dst := make([]byte, 64)
	consumed, written, err := Encode2(samples, -1, dst)
	require.NoError(t, err)
	assert.Equal(t, 8, consumed)
	assert.Equal(t, 64, written)

	assert.Equal(t, []byte{0x03, 0x00, 0x00, 0x00}, dst[0:4], "control word: slot 3 uses the 7-diffs/4-bit code")
	assert.Equal(t, []byte{0, 0, 0, 50}, dst[4:8])
	assert.Equal(t, []byte{0, 0, 0, 50}, dst[8:12])
	assert.Equal(t, byte(0x80), dst[12], "top 2 bits of the data word hold the Steim-2 subcode")
}

func TestEncode2FallsBackToWiderWordOnLargeDiff(t *testing.T) {
	// A diff that doesn't fit a 4-bit field forces a narrower (larger
	// bit-width) code for that word.
	samples := []int32{0, 1000, 0}
	dst := make([]byte, 64)
	consumed, written, err := Encode2(samples, -1, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, consumed)
	assert.Equal(t, 64, written)
}

func TestEncode2MaxSamplesLimit(t *testing.T) {
	samples := []int32{1, 2, 3, 4, 5, 6}
	dst := make([]byte, 64)
	consumed, _, err := Encode2(samples, 3, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, consumed)
}

func TestPackWordMasksToFieldWidth(t *testing.T) {
	opt := &codeOption{diffs: 4, bits: 8, class: 0b01}
	w := packWord([]int32{-1, -1, -1, -1}, opt)
	assert.Equal(t, uint32(0xffffffff), w)
}

func TestFitsSigned(t *testing.T) {
	assert.True(t, fitsSigned(127, 8))
	assert.True(t, fitsSigned(-128, 8))
	assert.False(t, fitsSigned(128, 8))
	assert.False(t, fitsSigned(-129, 8))
	assert.True(t, fitsSigned(1<<30, 32))
}
