package mseedpack

// Encoding identifies a sample encoding. The zero value has no special
// meaning; use EncodingDefault to request the packer's default.
type Encoding int

const (
	EncodingDefault Encoding = -1
	EncodingTEXT    Encoding = 0
	EncodingINT16   Encoding = 1
	EncodingINT32   Encoding = 3
	EncodingFLOAT32 Encoding = 4
	EncodingFLOAT64 Encoding = 5
	EncodingSTEIM1  Encoding = 10
	EncodingSTEIM2  Encoding = 11
)

func (e Encoding) resolve() Encoding {
	if e == EncodingDefault {
		return EncodingSTEIM2
	}
	return e
}

func (e Encoding) isSteim() bool {
	return e == EncodingSTEIM1 || e == EncodingSTEIM2
}

// SampleType identifies the type of a LogicalRecord's sample buffer.
type SampleType byte

const (
	SampleText    SampleType = 't'
	SampleInt32   SampleType = 'i'
	SampleFloat32 SampleType = 'f'
	SampleFloat64 SampleType = 'd'
)

// Flags is the per-record activity/IO/DQ flag byte (spec §3).
type Flags byte

const (
	FlagCalibrationSignal Flags = 0x01
	FlagDQSuspect         Flags = 0x02
	FlagClockLocked       Flags = 0x04
)

// RawRecord references a previously-encoded payload for the repack path
// (spec §4.9): the original record's bytes plus the byte range of its
// data region.
type RawRecord struct {
	Bytes      []byte
	DataOffset int
	DataLength int
}

// LogicalRecord is the packer's input: a header template plus a
// contiguous sample buffer (spec §3). Exactly one of TextSamples,
// Int32Samples, Float32Samples, Float64Samples is populated, selected
// by SampleType.
type LogicalRecord struct {
	SID                string
	PublicationVersion uint8 // 1..255; maps to v2 quality (1->R, 3->Q, 4->M, other->D)
	StartTime          int64 // ns since Unix epoch
	SampleRate         float64
	Encoding           Encoding
	MaxRecordLength    int // -1 requests default (4096)
	FormatVersion      int // 2 or 3; which wire format this record targets absent PackVer2
	Flags              Flags
	SampleType         SampleType

	TextSamples    []byte
	Int32Samples   []int32
	Float32Samples []float32
	Float64Samples []float64
	NumSamples     int

	Extra []byte // opaque JSON object, may be empty; length <=65535

	RawRecord *RawRecord // set only for RepackRecord
}

func (lr *LogicalRecord) effectiveEncoding() Encoding {
	return lr.Encoding.resolve()
}

func (lr *LogicalRecord) effectiveMaxRecordLength() int {
	if lr.MaxRecordLength == -1 {
		return 4096
	}
	return lr.MaxRecordLength
}

func (lr *LogicalRecord) effectiveFormatVersion() int {
	if lr.FormatVersion == 0 {
		return 3
	}
	return lr.FormatVersion
}

// publicationQuality maps PublicationVersion to the v2 quality indicator.
func (lr *LogicalRecord) publicationQuality() byte {
	switch lr.PublicationVersion {
	case 1:
		return 'R'
	case 3:
		return 'Q'
	case 4:
		return 'M'
	default:
		return 'D'
	}
}

// sampleSize returns the on-wire byte size of one sample for non-Steim
// encodings.
func sampleSize(enc Encoding) int {
	switch enc {
	case EncodingTEXT:
		return 1
	case EncodingINT16:
		return 2
	case EncodingINT32, EncodingFLOAT32:
		return 4
	case EncodingFLOAT64:
		return 8
	default:
		return 0
	}
}
