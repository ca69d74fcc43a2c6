// Package v2header builds the 48-byte big-endian miniSEED v2 fixed
// header and its singly-linked blockette chain (spec §4.7), consuming
// an extra-headers document via internal/xheader per the path table in
// spec §6.
package v2header

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fdsn-go/mseedpack/internal/mstime"
	"github.com/fdsn-go/mseedpack/internal/raterate"
	"github.com/fdsn-go/mseedpack/internal/sid"
	"github.com/fdsn-go/mseedpack/internal/xheader"
)

// FixedLen is the length of the v2 fixed header.
const FixedLen = 48

// Activity flag bits (byte offset 36 in the fixed header).
const (
	ActCalibration     = 1 << 0
	ActTimeCorrApplied = 1 << 1
	ActBeginEvent      = 1 << 2
	ActEndEvent        = 1 << 3
	ActPositiveLeap    = 1 << 4
	ActNegativeLeap    = 1 << 5
	ActEventInProgress = 1 << 6
)

// I/O and clock flag bits (byte offset 37).
const (
	IOStationVolumeParityError = 1 << 0
	IOLongRecordRead           = 1 << 1
	IOShortRecordRead          = 1 << 2
	IOStartOfTimeSeries        = 1 << 3
	IOEndOfTimeSeries          = 1 << 4
	IOClockLocked              = 1 << 5
)

// Data-quality flag bits (byte offset 38).
const (
	DQAmplifierSaturation = 1 << 0
	DQDigitizerClipping   = 1 << 1
	DQSpikes              = 1 << 2
	DQGlitches            = 1 << 3
	DQMissingData         = 1 << 4
	DQTelemetrySyncError  = 1 << 5
	DQFilterCharging      = 1 << 6
)

// ErrBlockChainOverflow is returned when the blockette chain plus fixed
// header does not fit in reclen.
var ErrBlockChainOverflow = fmt.Errorf("v2header: blockette chain overflows record")

// ErrMalformedCalibration is returned for a calibration entry whose
// Type is not one of STEP/SINE/PSEUDORANDOM/GENERIC and which also
// lacks an EndTime.
var ErrMalformedCalibration = fmt.Errorf("v2header: calibration entry missing Type and EndTime")

// Fields describes everything needed to build a record's header, apart
// from sample count / usec_offset / fsec, which may be rewritten in
// place across records of the same pack call (spec §4.8 step 7).
type Fields struct {
	SID                sid.Parsed
	PublicationQuality byte // 'R','D','Q','M' per caller's publication_version, overridden by /FDSN/DataQuality if present
	StartTime          int64 // ns since epoch
	SampleRate         float64
	Encoding           byte
	RecLen             int // power of two, [128, 65536]
	CallerFlags        byte // spec §3 flags byte: 0x01 cal, 0x02 DQ-suspect, 0x04 clock-locked
	TimeCorrection     float64 // seconds, applied via /FDSN/Time/Correction
	Extra              xheader.Doc
}

// Built holds the assembled fixed header plus blockette chain and the
// computed data offset, ready for the record driver to append payload
// bytes at DataOffset.
type Built struct {
	Header     []byte // FixedLen + blockette chain + padding to DataOffset
	DataOffset int
	// Offsets, within Header, of fields the record driver rewrites per
	// continuation record (§4.8 step 7).
	FsecOffset        int
	SampleCountOffset int
	B1001UsecOffset   int // -1 if no B1001 was emitted
}

// Build assembles the fixed header and blockette chain. sampleCount is
// the record's eventual sample count (patched in place by the driver as
// encoding proceeds, but Build needs a starting value to size nothing —
// the field is fixed width regardless).
func Build(f Fields, sampleCount uint16) (Built, error) {
	if f.RecLen < 128 || f.RecLen > 65536 || f.RecLen&(f.RecLen-1) != 0 {
		return Built{}, fmt.Errorf("v2header: reclen %d is not a power of two in [128,65536]", f.RecLen)
	}

	bd, err := mstime.BreakDown(f.StartTime)
	if err != nil {
		return Built{}, err
	}
	split := mstime.SplitFsec(f.StartTime)

	factor, multiplier, err := raterate.Reduce(f.SampleRate)
	if err != nil {
		return Built{}, err
	}
	needB100 := math.Abs(f.SampleRate-raterate.Nominal(factor, multiplier)) > 1e-4

	seq, _ := f.Extra.Sequence()
	quality := f.PublicationQuality
	if ch, ok := f.Extra.DataQuality(); ok {
		quality = ch
	}

	activity, ioFlags, dqFlags := byte(0), byte(0), byte(0)
	if f.CallerFlags&0x01 != 0 {
		activity |= ActCalibration
	}
	if f.CallerFlags&0x04 != 0 {
		ioFlags |= IOClockLocked
	}
	if f.CallerFlags&0x02 != 0 {
		dqFlags |= DQAmplifierSaturation // suspect DQ bit, closest analog among §6's explicit DQ bits
	}

	ev := f.Extra.EventFlags()
	if ev.Begin {
		activity |= ActBeginEvent
	}
	if ev.End {
		activity |= ActEndEvent
	}
	if ev.InProgress {
		activity |= ActEventInProgress
	}
	if leap, ok := f.Extra.LeapSecond(); ok {
		if leap > 0 {
			activity |= ActPositiveLeap
		} else if leap < 0 {
			activity |= ActNegativeLeap
		}
	}

	var timeCorr int32
	if corr, ok := f.Extra.TimeCorrection(); ok {
		activity |= ActTimeCorrApplied
		timeCorr = int32(math.Round(corr * 10000))
	}

	for _, name := range []string{"StationVolumeParityError", "LongRecordRead", "ShortRecordRead", "StartOfTimeSeries", "EndOfTimeSeries"} {
		if f.Extra.Flag(name) {
			switch name {
			case "StationVolumeParityError":
				ioFlags |= IOStationVolumeParityError
			case "LongRecordRead":
				ioFlags |= IOLongRecordRead
			case "ShortRecordRead":
				ioFlags |= IOShortRecordRead
			case "StartOfTimeSeries":
				ioFlags |= IOStartOfTimeSeries
			case "EndOfTimeSeries":
				ioFlags |= IOEndOfTimeSeries
			}
		}
	}
	for _, name := range []string{"AmplifierSaturation", "DigitizerClipping", "Spikes", "Glitches", "MissingData", "TelemetrySyncError", "FilterCharging"} {
		if f.Extra.Flag(name) {
			switch name {
			case "AmplifierSaturation":
				dqFlags |= DQAmplifierSaturation
			case "DigitizerClipping":
				dqFlags |= DQDigitizerClipping
			case "Spikes":
				dqFlags |= DQSpikes
			case "Glitches":
				dqFlags |= DQGlitches
			case "MissingData":
				dqFlags |= DQMissingData
			case "TelemetrySyncError":
				dqFlags |= DQTelemetrySyncError
			case "FilterCharging":
				dqFlags |= DQFilterCharging
			}
		}
	}

	timeQuality, hasTimeQuality := f.Extra.TimeQuality()
	needB1001 := hasTimeQuality || split.UsecOffset != 0

	cb := newChainBuilder(f.RecLen)

	// B1000 unconditionally first (original_source ordering, see DESIGN.md).
	recLenExp := 0
	for (1 << uint(recLenExp)) < f.RecLen {
		recLenExp++
	}
	cb.addB1000(f.Encoding, recLenExp)

	if needB1001 {
		cb.addB1001(timeQuality)
	}
	if needB100 {
		cb.addB100(float32(f.SampleRate))
	}

	for _, te := range f.Extra.TimeExceptions() {
		cb.addB500(te)
	}
	for _, det := range f.Extra.Detections() {
		cb.addDetection(det)
	}
	cals, err := f.Extra.Calibrations()
	if err != nil {
		return Built{}, ErrMalformedCalibration
	}
	for _, c := range cals {
		if err := cb.addCalibration(c); err != nil {
			return Built{}, err
		}
	}

	dataOffset := FixedLen + cb.len()
	if f.Encoding == 10 || f.Encoding == 11 { // STEIM1, STEIM2
		dataOffset = alignUp(dataOffset, 64)
	}
	if dataOffset > f.RecLen {
		return Built{}, ErrBlockChainOverflow
	}

	header := make([]byte, dataOffset)
	writeSeq(header[0:6], seq)
	header[6] = quality
	header[7] = ' '
	writeFixedASCII(header[8:13], f.SID.Station)
	writeFixedASCII(header[13:15], f.SID.Location)
	writeFixedASCII(header[15:18], f.SID.Channel())
	writeFixedASCII(header[18:20], f.SID.Network)

	writeBTIME(header[20:30], bd.Year, bd.Day, bd.Hour, bd.Min, bd.Sec, uint16(split.Fsec))

	binary.BigEndian.PutUint16(header[30:32], sampleCount)
	binary.BigEndian.PutUint16(header[32:34], uint16(factor))
	binary.BigEndian.PutUint16(header[34:36], uint16(multiplier))
	header[36] = activity
	header[37] = ioFlags
	header[38] = dqFlags
	header[39] = byte(cb.count)
	binary.BigEndian.PutUint32(header[40:44], uint32(timeCorr))
	binary.BigEndian.PutUint16(header[44:46], uint16(dataOffset))
	if cb.count > 0 {
		binary.BigEndian.PutUint16(header[46:48], FixedLen)
	} else {
		binary.BigEndian.PutUint16(header[46:48], 0)
	}

	n := copy(header[FixedLen:], cb.bytes())
	for i := FixedLen + n; i < dataOffset; i++ {
		header[i] = 0
	}

	b1001Offset := -1
	if off, ok := cb.b1001Offset(); ok {
		b1001Offset = off
		header[b1001Offset] = byte(int8(split.UsecOffset))
	}

	return Built{
		Header:            header,
		DataOffset:        dataOffset,
		FsecOffset:        28, // within BTIME at header[20:30], fsec is bytes [8:10] -> absolute 28:30
		SampleCountOffset: 30,
		B1001UsecOffset:   b1001Offset,
	}, nil
}

// RewriteSampleCount patches the 2-byte sample count in place.
func RewriteSampleCount(header []byte, count uint16) {
	binary.BigEndian.PutUint16(header[30:32], count)
}

// RewriteFsec patches the BTIME fsec field (tenths of ms) in place.
func RewriteFsec(header []byte, fsec uint16) {
	binary.BigEndian.PutUint16(header[28:30], fsec)
}

// RewriteStartTime patches the whole BTIME field (and B1001 usec_offset
// if present) for a continuation record, per §4.8 step 7.
func RewriteStartTime(b Built, startTime int64) error {
	bd, err := mstime.BreakDown(startTime)
	if err != nil {
		return err
	}
	split := mstime.SplitFsec(startTime)
	writeBTIME(b.Header[20:30], bd.Year, bd.Day, bd.Hour, bd.Min, bd.Sec, uint16(split.Fsec))
	if b.B1001UsecOffset >= 0 {
		b.Header[b.B1001UsecOffset] = byte(int8(split.UsecOffset))
	}
	return nil
}

func writeBTIME(dst []byte, year, day, hour, min, sec int, fsec uint16) {
	binary.BigEndian.PutUint16(dst[0:2], uint16(year))
	binary.BigEndian.PutUint16(dst[2:4], uint16(day))
	dst[4] = byte(hour)
	dst[5] = byte(min)
	dst[6] = byte(sec)
	dst[7] = 0
	binary.BigEndian.PutUint16(dst[8:10], fsec)
}

func writeSeq(dst []byte, seq uint32) {
	s := fmt.Sprintf("%06d", seq)
	copy(dst, []byte(s))
}

func writeFixedASCII(dst []byte, s string) {
	for i := range dst {
		dst[i] = ' '
	}
	copy(dst, s)
}

func alignUp(v, align int) int {
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}
