package sid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWellFormed(t *testing.T) {
	p, err := Parse("FDSN:IU_ANMO_00_B_H_Z")
	require.NoError(t, err)
	assert.Equal(t, "IU", p.Network)
	assert.Equal(t, "ANMO", p.Station)
	assert.Equal(t, "00", p.Location)
	assert.Equal(t, "B", p.Band)
	assert.Equal(t, "H", p.Source)
	assert.Equal(t, "Z", p.Subsource)
	assert.Equal(t, "BHZ", p.Channel())
}

func TestParseEmptyLocation(t *testing.T) {
	p, err := Parse("FDSN:IU_ANMO__B_H_Z")
	require.NoError(t, err)
	assert.Equal(t, "", p.Location)
}

func TestParseTwoCharSubsource(t *testing.T) {
	p, err := Parse("FDSN:XX_TEST__H_N_01")
	require.NoError(t, err)
	assert.Equal(t, "01", p.Subsource)
	assert.Equal(t, "HN0", p.Channel())
}

func TestParseMissingPrefix(t *testing.T) {
	_, err := Parse("IU_ANMO_00_B_H_Z")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseWrongFieldCount(t *testing.T) {
	_, err := Parse("FDSN:IU_ANMO_00_B_H")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseFieldTooLong(t *testing.T) {
	_, err := Parse("FDSN:TOOLONG_ANMO_00_B_H_Z")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseTooLong(t *testing.T) {
	long := "FDSN:" + strings.Repeat("X", 300)
	_, err := Parse(long)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFormatRoundTrip(t *testing.T) {
	in := "FDSN:IU_ANMO_00_B_H_Z"
	p, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, in, Format(p))
}
