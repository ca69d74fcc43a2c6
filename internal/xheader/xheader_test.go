package xheader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmptyIsEmptyDoc(t *testing.T) {
	doc, err := Parse(nil)
	require.NoError(t, err)
	_, ok := doc.Sequence()
	assert.False(t, ok)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSequenceClamped(t *testing.T) {
	doc, err := Parse([]byte(`{"FDSN":{"Sequence":5000000}}`))
	require.NoError(t, err)
	seq, ok := doc.Sequence()
	assert.True(t, ok)
	assert.Equal(t, uint32(999999), seq)
}

func TestDataQualityValidChar(t *testing.T) {
	doc, err := Parse([]byte(`{"FDSN":{"DataQuality":"Q"}}`))
	require.NoError(t, err)
	ch, ok := doc.DataQuality()
	assert.True(t, ok)
	assert.Equal(t, byte('Q'), ch)
}

func TestDataQualityInvalidChar(t *testing.T) {
	doc, err := Parse([]byte(`{"FDSN":{"DataQuality":"Z"}}`))
	require.NoError(t, err)
	_, ok := doc.DataQuality()
	assert.False(t, ok)
}

func TestEventFlags(t *testing.T) {
	doc, err := Parse([]byte(`{"FDSN":{"Event":{"Begin":true,"InProgress":true}}}`))
	require.NoError(t, err)
	ev := doc.EventFlags()
	assert.True(t, ev.Begin)
	assert.False(t, ev.End)
	assert.True(t, ev.InProgress)
}

func TestTimeCorrectionAbsent(t *testing.T) {
	doc, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	_, ok := doc.TimeCorrection()
	assert.False(t, ok)
}

func TestTimeCorrectionZeroStillPresent(t *testing.T) {
	doc, err := Parse([]byte(`{"FDSN":{"Time":{"Correction":0}}}`))
	require.NoError(t, err)
	v, ok := doc.TimeCorrection()
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestFlag(t *testing.T) {
	doc, err := Parse([]byte(`{"FDSN":{"Flags":{"Spikes":true}}}`))
	require.NoError(t, err)
	assert.True(t, doc.Flag("Spikes"))
	assert.False(t, doc.Flag("Glitches"))
}

func TestTimeExceptions(t *testing.T) {
	doc, err := Parse([]byte(`{"FDSN":{"Time":{"Exception":[
		{"USecTime":123,"VCOCorrection":1.5,"Quality":90,"ClockModel":"rubidium"}
	]}}}`))
	require.NoError(t, err)
	exc := doc.TimeExceptions()
	require.Len(t, exc, 1)
	assert.Equal(t, int64(123), exc[0].USecTime)
	assert.True(t, exc[0].HasVCO)
	assert.Equal(t, 1.5, exc[0].VCOCorrection)
	assert.Equal(t, uint8(90), exc[0].Quality)
	assert.Equal(t, "rubidium", exc[0].ClockModel)
}

func TestDetectionsMurdockCaseInsensitive(t *testing.T) {
	doc, err := Parse([]byte(`{"FDSN":{"Event":{"Detection":[
		{"Type":"murdock_boaz"},
		{"Type":"other"}
	]}}}`))
	require.NoError(t, err)
	dets := doc.Detections()
	require.Len(t, dets, 2)
	assert.True(t, dets[0].IsMurdock)
	assert.False(t, dets[1].IsMurdock)
}

func TestCalibrationsRequireTypeOrEndTime(t *testing.T) {
	doc, err := Parse([]byte(`{"FDSN":{"Calibration":{"Sequence":[
		{"Amplitude":1.0}
	]}}}`))
	require.NoError(t, err)
	_, err = doc.Calibrations()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCalibrationsValidEntry(t *testing.T) {
	doc, err := Parse([]byte(`{"FDSN":{"Calibration":{"Sequence":[
		{"Type":"STEP","BeginTime":10,"Duration":2.5,"StepAmplitude":1.0,"StepInterval":0.1}
	]}}}`))
	require.NoError(t, err)
	cals, err := doc.Calibrations()
	require.NoError(t, err)
	require.Len(t, cals, 1)
	assert.Equal(t, "STEP", cals[0].Type)
	assert.True(t, cals[0].HasType)
	assert.False(t, cals[0].HasEndTime)
	assert.Equal(t, 2.5, cals[0].Duration)
}

func TestCalibrationsAbsentIsEmpty(t *testing.T) {
	doc, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	cals, err := doc.Calibrations()
	require.NoError(t, err)
	assert.Nil(t, cals)
}
