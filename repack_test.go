package mseedpack

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepackRecordV3CopiesPayloadAndRecomputesCRC(t *testing.T) {
	// First pack a source record, then feed its payload back through
	// RepackRecord as a RawRecord and confirm the rebuilt record carries
	// the same payload bytes and a valid CRC.
	lr := &LogicalRecord{
		SID:             "FDSN:XX_TEST__L_O_G",
		StartTime:       timeNano(t, "2012-01-01T00:00:00Z"),
		SampleRate:      100,
		Encoding:        EncodingINT32,
		MaxRecordLength: 512,
		FormatVersion:   3,
		SampleType:      SampleInt32,
		Int32Samples:    []int32{7, 8, 9},
		NumSamples:      3,
	}
	p := NewPacker(nil)
	var src []byte
	_, err := p.PackRecords(lr, func(record []byte, _ interface{}) {
		src = append([]byte(nil), record...)
	}, PackOptions{Flags: FlushData})
	require.NoError(t, err)

	sidLen := int(src[v3OffSIDLen])
	dataLen := int(binary.LittleEndian.Uint32(src[v3OffDataLen:]))
	dataOffset := v3FixedLen + sidLen

	repackLR := &LogicalRecord{
		SID:             lr.SID,
		StartTime:       lr.StartTime,
		SampleRate:      lr.SampleRate,
		Encoding:        EncodingINT32,
		MaxRecordLength: 512,
		FormatVersion:   3,
		NumSamples:      3,
		RawRecord: &RawRecord{
			Bytes:      src,
			DataOffset: dataOffset,
			DataLength: dataLen,
		},
	}

	p2 := NewPacker(nil)
	var out []byte
	n, err := p2.RepackRecord(repackLR, func(record []byte, _ interface{}) {
		out = append([]byte(nil), record...)
	}, DefaultPackOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	outSIDLen := int(out[v3OffSIDLen])
	outDataOffset := v3FixedLen + outSIDLen
	outDataLen := int(binary.LittleEndian.Uint32(out[v3OffDataLen:]))
	assert.Equal(t, src[dataOffset:dataOffset+dataLen], out[outDataOffset:outDataOffset+outDataLen])

	zeroed := append([]byte(nil), out...)
	binary.LittleEndian.PutUint32(zeroed[v3OffCRC:], 0)
	assert.Equal(t, crcReference(zeroed), binary.LittleEndian.Uint32(out[v3OffCRC:]))
}

func TestRepackRecordRequiresRawRecord(t *testing.T) {
	lr := &LogicalRecord{
		SID:             "FDSN:XX_TEST__L_O_G",
		StartTime:       timeNano(t, "2012-01-01T00:00:00Z"),
		SampleRate:      100,
		FormatVersion:   3,
		MaxRecordLength: 512,
		NumSamples:      1,
	}
	p := NewPacker(nil)
	_, err := p.RepackRecord(lr, func([]byte, interface{}) {}, DefaultPackOptions())
	require.Error(t, err)
	var perr *PackError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, InvalidArgument, perr.Kind)
}

func TestRepackRecordRejectsOutOfBoundsRange(t *testing.T) {
	lr := &LogicalRecord{
		SID:             "FDSN:XX_TEST__L_O_G",
		StartTime:       timeNano(t, "2012-01-01T00:00:00Z"),
		SampleRate:      100,
		FormatVersion:   3,
		MaxRecordLength: 512,
		NumSamples:      1,
		RawRecord: &RawRecord{
			Bytes:      make([]byte, 10),
			DataOffset: 5,
			DataLength: 20,
		},
	}
	p := NewPacker(nil)
	_, err := p.RepackRecord(lr, func([]byte, interface{}) {}, DefaultPackOptions())
	require.Error(t, err)
}

func timeNano(t *testing.T, s string) int64 {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts.UnixNano()
}
