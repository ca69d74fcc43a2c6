package v2header

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdsn-go/mseedpack/internal/sid"
	"github.com/fdsn-go/mseedpack/internal/xheader"
)

func mustSID(t *testing.T, s string) sid.Parsed {
	t.Helper()
	p, err := sid.Parse(s)
	require.NoError(t, err)
	return p
}

func emptyExtra(t *testing.T) xheader.Doc {
	t.Helper()
	doc, err := xheader.Parse(nil)
	require.NoError(t, err)
	return doc
}

func TestBuildBasicSingleBlockette(t *testing.T) {
	start := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano()
	built, err := Build(Fields{
		SID:                mustSID(t, "FDSN:IU_ANMO_00_B_H_Z"),
		PublicationQuality: 'D',
		StartTime:          start,
		SampleRate:         100,
		Encoding:           3,
		RecLen:             256,
		Extra:              emptyExtra(t),
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, FixedLen+8, built.DataOffset, "48-byte fixed header + one 8-byte B1000")
	assert.Equal(t, byte(1), built.Header[39], "blockette count")
	assert.Equal(t, uint16(built.DataOffset), binary.BigEndian.Uint16(built.Header[44:46]))
	assert.Equal(t, uint16(FixedLen), binary.BigEndian.Uint16(built.Header[46:48]))
	assert.Equal(t, "ANMO ", string(built.Header[8:13]))
	assert.Equal(t, "00", string(built.Header[13:15]))
	assert.Equal(t, "IU", string(built.Header[18:20]))
	assert.Equal(t, uint16(2012), binary.BigEndian.Uint16(built.Header[20:22]))
	assert.Equal(t, uint16(100), binary.BigEndian.Uint16(built.Header[32:34]), "factor")
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(built.Header[34:36]), "multiplier")
}

func TestBuildRecLenNotPowerOfTwo(t *testing.T) {
	_, err := Build(Fields{
		SID:        mustSID(t, "FDSN:IU_ANMO_00_B_H_Z"),
		StartTime:  0,
		SampleRate: 1,
		RecLen:     300,
		Extra:      emptyExtra(t),
	}, 0)
	assert.Error(t, err)
}

func TestBuildEmitsB1001WhenTimeQualityPresent(t *testing.T) {
	extra, err := xheader.Parse([]byte(`{"FDSN":{"Time":{"Quality":80}}}`))
	require.NoError(t, err)
	built, err := Build(Fields{
		SID:        mustSID(t, "FDSN:IU_ANMO_00_B_H_Z"),
		StartTime:  0,
		SampleRate: 100,
		Encoding:   3,
		RecLen:     256,
		Extra:      extra,
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(2), built.Header[39], "B1000 + B1001")
	assert.GreaterOrEqual(t, built.B1001UsecOffset, 0)
}

func TestBuildSteimAlignsDataOffsetTo64(t *testing.T) {
	built, err := Build(Fields{
		SID:        mustSID(t, "FDSN:IU_ANMO_00_B_H_Z"),
		StartTime:  0,
		SampleRate: 100,
		Encoding:   11, // STEIM2
		RecLen:     512,
		Extra:      emptyExtra(t),
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, built.DataOffset%64)
}

func TestBuildActivityFlagsFromCallerAndExtra(t *testing.T) {
	extra, err := xheader.Parse([]byte(`{"FDSN":{"Event":{"Begin":true}}}`))
	require.NoError(t, err)
	built, err := Build(Fields{
		SID:         mustSID(t, "FDSN:IU_ANMO_00_B_H_Z"),
		StartTime:   0,
		SampleRate:  100,
		Encoding:    3,
		RecLen:      256,
		CallerFlags: 0x01, // calibration in progress
		Extra:       extra,
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(ActCalibration|ActBeginEvent), built.Header[36])
}

func TestBuildTimeCorrectionSetsActivityBitEvenWhenZero(t *testing.T) {
	extra, err := xheader.Parse([]byte(`{"FDSN":{"Time":{"Correction":0}}}`))
	require.NoError(t, err)
	built, err := Build(Fields{
		SID:        mustSID(t, "FDSN:IU_ANMO_00_B_H_Z"),
		StartTime:  0,
		SampleRate: 100,
		Encoding:   3,
		RecLen:     256,
		Extra:      extra,
	}, 0)
	require.NoError(t, err)
	assert.NotEqual(t, byte(0), built.Header[36]&ActTimeCorrApplied)
}

func TestBuildRejectsMalformedCalibration(t *testing.T) {
	extra, err := xheader.Parse([]byte(`{"FDSN":{"Calibration":{"Sequence":[{"Amplitude":1.0}]}}}`))
	require.NoError(t, err)
	_, err = Build(Fields{
		SID:        mustSID(t, "FDSN:IU_ANMO_00_B_H_Z"),
		StartTime:  0,
		SampleRate: 100,
		Encoding:   3,
		RecLen:     256,
		Extra:      extra,
	}, 0)
	assert.ErrorIs(t, err, ErrMalformedCalibration)
}

func TestBuildBlockChainOverflow(t *testing.T) {
	extra, err := xheader.Parse([]byte(`{"FDSN":{"Calibration":{"Sequence":[
		{"Type":"STEP","EndTime":1},{"Type":"SINE","EndTime":1},
		{"Type":"PSEUDORANDOM","EndTime":1},{"Type":"GENERIC","EndTime":1}
	]}}}`))
	require.NoError(t, err)
	_, err = Build(Fields{
		SID:        mustSID(t, "FDSN:IU_ANMO_00_B_H_Z"),
		StartTime:  0,
		SampleRate: 100,
		Encoding:   3,
		RecLen:     128,
		Extra:      extra,
	}, 0)
	assert.ErrorIs(t, err, ErrBlockChainOverflow)
}

func TestRewriteSampleCount(t *testing.T) {
	built, err := Build(Fields{
		SID:        mustSID(t, "FDSN:IU_ANMO_00_B_H_Z"),
		StartTime:  0,
		SampleRate: 100,
		Encoding:   3,
		RecLen:     256,
		Extra:      emptyExtra(t),
	}, 0)
	require.NoError(t, err)
	RewriteSampleCount(built.Header, 1234)
	assert.Equal(t, uint16(1234), binary.BigEndian.Uint16(built.Header[30:32]))
}

func TestRewriteStartTimeUpdatesB1001Usec(t *testing.T) {
	extra, err := xheader.Parse([]byte(`{"FDSN":{"Time":{"Quality":50}}}`))
	require.NoError(t, err)
	built, err := Build(Fields{
		SID:        mustSID(t, "FDSN:IU_ANMO_00_B_H_Z"),
		StartTime:  0,
		SampleRate: 100,
		Encoding:   3,
		RecLen:     256,
		Extra:      extra,
	}, 0)
	require.NoError(t, err)

	next := time.Date(2012, 1, 1, 0, 0, 1, 520000, time.UTC).UnixNano() // 520us: fsec=5, usec_offset=20
	require.NoError(t, RewriteStartTime(built, next))
	assert.Equal(t, uint16(2012), binary.BigEndian.Uint16(built.Header[20:22]))
	assert.Equal(t, byte(20), built.Header[built.B1001UsecOffset])
}
