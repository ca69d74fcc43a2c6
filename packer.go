// Package mseedpack serializes a LogicalRecord — a header template plus
// a contiguous sample buffer — into one or more fixed-length (v2) or
// tightly-packed (v3) FDSN miniSEED records (spec.md §1-2). Packer is
// the top-level entry point; it owns the scratch buffers reused across
// calls and drives the per-record build/encode/finalize/emit loop of
// §4.8.
package mseedpack

import (
	"fmt"

	goerrors "github.com/pkg/errors"

	"github.com/fdsn-go/mseedpack/internal/byteorder"
	"github.com/fdsn-go/mseedpack/internal/crc32c"
	"github.com/fdsn-go/mseedpack/internal/mstime"
	"github.com/fdsn-go/mseedpack/internal/raterate"
	"github.com/fdsn-go/mseedpack/internal/sampenc"
	"github.com/fdsn-go/mseedpack/internal/sid"
	"github.com/fdsn-go/mseedpack/internal/steim"
	"github.com/fdsn-go/mseedpack/internal/v2header"
	"github.com/fdsn-go/mseedpack/internal/v3header"
	"github.com/fdsn-go/mseedpack/internal/xheader"
)

// Logger is the packer's only ambient collaborator: §7 requires every
// failure to log a single message before the top-level call returns,
// but §1 places the logging sink itself out of the packer's scope.
// Callers that don't care pass nil; Packer falls back to a no-op.
type Logger interface {
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Errorf(string, ...interface{}) {}

// RecordHandler receives one finished PhysicalRecord. The slice is only
// valid for the duration of the call — the same underlying array is
// reused for the next record (spec §5, §6).
type RecordHandler func(record []byte, userData interface{})

// Flag is a bitmask of options accepted by the top-level pack operation
// (spec §6).
type Flag int

const (
	// FlushData emits the final partial record even if it holds fewer
	// than one full record's worth of samples.
	FlushData Flag = 1 << iota
	// PackVer2 forces v2 output regardless of the record's declared
	// format version.
	PackVer2
)

// PackOptions carries the per-call knobs the record driver needs:
// whether to flush a trailing partial record, whether to force v2
// output, and the opaque value handed back to the caller's
// RecordHandler untouched.
type PackOptions struct {
	Flags    Flag
	UserData interface{}
}

// DefaultPackOptions returns the zero-value PackOptions (no flush, no
// forced version).
func DefaultPackOptions() PackOptions { return PackOptions{} }

func (o PackOptions) flush() bool { return o.Flags&FlushData != 0 }
func (o PackOptions) ver2() bool  { return o.Flags&PackVer2 != 0 }

// Packer builds PhysicalRecords from LogicalRecords. A Packer is not safe
// for concurrent use: every call writes into the same scratch buffers.
// Separate Packers may run in parallel on disjoint LogicalRecords. Each
// call is single-threaded and synchronous, and the scratch buffers are grown lazily
// and kept between calls the way the teacher's WAL pools its record
// buffers (internal/wal's bufPool, pre-transformation).
type Packer struct {
	Logger Logger

	recordBuf  []byte
	payloadBuf []byte
}

// NewPacker returns a Packer logging through logger, or silently if
// logger is nil.
func NewPacker(logger Logger) *Packer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Packer{Logger: logger}
}

func (p *Packer) recordScratch(n int) []byte {
	if cap(p.recordBuf) < n {
		p.recordBuf = make([]byte, n)
	}
	return p.recordBuf[:n]
}

func (p *Packer) payloadScratch(n int) []byte {
	if cap(p.payloadBuf) < n {
		p.payloadBuf = make([]byte, n)
	}
	return p.payloadBuf[:n]
}

func (p *Packer) logf(format string, args ...interface{}) {
	p.Logger.Errorf(format, args...)
}

// effectiveRateHz normalizes LogicalRecord's sign convention (positive
// = samples/second, negative = seconds/sample) to a positive
// samples/second value, the form mstime.Advance and the v3 sample-rate
// field expect (spec §4.2, §4.6). The v2 header builder is given the raw
// signed sample rate instead; raterate.Reduce reads its sign itself.
func effectiveRateHz(sampleRate float64) float64 {
	if sampleRate == 0 {
		return 0
	}
	if sampleRate > 0 {
		return sampleRate
	}
	return 1.0 / -sampleRate
}

// v3SampleRateField implements spec §4.6's encoding rule for the v3
// fixed header's 8-byte sample-rate field: periods under 1Hz are
// stored as -1/rate.
func v3SampleRateField(rateHz float64) float64 {
	if rateHz > 0 && rateHz < 1 {
		return -1.0 / rateHz
	}
	return rateHz
}

func sampleTypeForEncoding(enc Encoding) (SampleType, bool) {
	switch enc {
	case EncodingTEXT:
		return SampleText, true
	case EncodingINT16, EncodingINT32, EncodingSTEIM1, EncodingSTEIM2:
		return SampleInt32, true
	case EncodingFLOAT32:
		return SampleFloat32, true
	case EncodingFLOAT64:
		return SampleFloat64, true
	default:
		return 0, false
	}
}

func (lr *LogicalRecord) validate(enc Encoding) error {
	want, ok := sampleTypeForEncoding(enc)
	if !ok {
		return errInvalidArgument("encoding", fmt.Errorf("unsupported encoding %d", enc))
	}
	if lr.SampleType != want {
		return errInvalidArgument("sample_type", fmt.Errorf("encoding %d requires sample_type %q, got %q", enc, want, lr.SampleType))
	}
	switch want {
	case SampleText:
		if len(lr.TextSamples) < lr.NumSamples {
			return errInvalidArgument("samples", fmt.Errorf("text sample buffer shorter than num_samples"))
		}
	case SampleInt32:
		if len(lr.Int32Samples) < lr.NumSamples {
			return errInvalidArgument("samples", fmt.Errorf("int32 sample buffer shorter than num_samples"))
		}
	case SampleFloat32:
		if len(lr.Float32Samples) < lr.NumSamples {
			return errInvalidArgument("samples", fmt.Errorf("float32 sample buffer shorter than num_samples"))
		}
	case SampleFloat64:
		if len(lr.Float64Samples) < lr.NumSamples {
			return errInvalidArgument("samples", fmt.Errorf("float64 sample buffer shorter than num_samples"))
		}
	}
	return nil
}

// maxSamplesForPayload computes the per-record sample bound described
// in spec §4.8 step 1: Steim records fit frameMax samples per 64-byte
// frame; fixed-width encodings fit payloadBytes/sampleSize.
func maxSamplesForPayload(enc Encoding, payloadBytes int) (maxSamples, dstLen int, err error) {
	if enc.isSteim() {
		frames := payloadBytes / 64
		if frames <= 0 {
			return 0, 0, errBufferTooSmall("payload", fmt.Errorf("no room for one Steim frame"))
		}
		frameMax := steim.Frame1MaxSamples
		if enc == EncodingSTEIM2 {
			frameMax = steim.Frame2MaxSamples
		}
		return frames * frameMax, frames * 64, nil
	}
	sz := sampleSize(enc)
	if sz <= 0 {
		return 0, 0, errInvalidArgument("encoding", fmt.Errorf("encoding %d has no fixed sample size", enc))
	}
	n := payloadBytes / sz
	if n <= 0 {
		return 0, 0, errBufferTooSmall("payload", fmt.Errorf("no room for one sample"))
	}
	return n, n * sz, nil
}

// PackRecords runs the record driver (spec §4.8) over lr, invoking
// handler once per emitted PhysicalRecord, and returns the number of
// records emitted. On failure no partial record for the failing
// iteration is emitted, but records already emitted earlier in the
// call stand (spec §7).
func (p *Packer) PackRecords(lr *LogicalRecord, handler RecordHandler, opts PackOptions) (int, error) {
	if lr == nil {
		return 0, errInvalidArgument("logical_record", nil)
	}
	if handler == nil {
		return 0, errInvalidArgument("record_handler", nil)
	}
	if lr.NumSamples < 0 {
		return 0, errInvalidArgument("num_samples", fmt.Errorf("negative"))
	}

	enc := lr.effectiveEncoding()
	if err := lr.validate(enc); err != nil {
		p.logf("mseedpack: pack %s: %v", lr.SID, err)
		return 0, err
	}

	version := lr.effectiveFormatVersion()
	if opts.ver2() {
		version = 2
	}
	if version != 2 && version != 3 {
		err := errInvalidArgument("format_version", fmt.Errorf("unsupported version %d", version))
		p.logf("mseedpack: pack %s: %v", lr.SID, err)
		return 0, err
	}

	reclen := lr.effectiveMaxRecordLength()
	if version == 3 {
		if reclen < 40 || reclen > 1<<20 {
			err := errInvalidArgument("max_record_length", fmt.Errorf("v3 reclen %d out of [40, 2^20]", reclen))
			p.logf("mseedpack: pack %s: %v", lr.SID, err)
			return 0, err
		}
	} else {
		if reclen < 128 || reclen > 1<<16 || reclen&(reclen-1) != 0 {
			err := errInvalidArgument("max_record_length", fmt.Errorf("v2 reclen %d out of [128, 65536] or not a power of two", reclen))
			p.logf("mseedpack: pack %s: %v", lr.SID, err)
			return 0, err
		}
	}

	sidParsed, err := sid.Parse(lr.SID)
	if err != nil {
		werr := errInvalidArgument("sid", err)
		p.logf("mseedpack: pack %s: %v", lr.SID, werr)
		return 0, werr
	}

	if lr.NumSamples == 0 {
		if err := p.emitEmptyRecord(lr, sidParsed, version, reclen, handler, opts); err != nil {
			p.logf("mseedpack: pack %s: %v", lr.SID, err)
			return 0, err
		}
		return 1, nil
	}

	rateHz := effectiveRateHz(lr.SampleRate)

	if version == 3 {
		return p.packV3(lr, sidParsed, enc, reclen, rateHz, handler, opts)
	}
	return p.packV2(lr, sidParsed, enc, reclen, rateHz, handler, opts)
}

// emitEmptyRecord implements spec §4.8's empty-payload short circuit:
// num_samples == 0 always yields exactly one record, encoding forced
// to TEXT, with zero data length.
func (p *Packer) emitEmptyRecord(lr *LogicalRecord, sidParsed sid.Parsed, version, reclen int, handler RecordHandler, opts PackOptions) error {
	if version == 3 {
		extraLen := len(lr.Extra)
		headerLen := v3header.FixedLen + len(lr.SID) + extraLen
		if headerLen > reclen {
			return errBufferTooSmall("header", fmt.Errorf("v3 empty-record header %d exceeds reclen %d", headerLen, reclen))
		}
		bd, err := mstime.BreakDown(lr.StartTime)
		if err != nil {
			return errDataOutOfRange("start_time", err)
		}
		buf := p.recordScratch(headerLen)
		fields := v3header.Fields{
			Flags:        byte(lr.Flags),
			NsecOfSec:    uint32(bd.Nsec),
			Year:         uint16(bd.Year),
			Day:          uint16(bd.Day),
			Hour:         uint8(bd.Hour),
			Min:          uint8(bd.Min),
			Sec:          uint8(bd.Sec),
			Encoding:     byte(EncodingTEXT),
			SampleRate:   v3SampleRateField(effectiveRateHz(lr.SampleRate)),
			PubVersion:   lr.PublicationVersion,
			SID:          []byte(lr.SID),
			ExtraHeaders: lr.Extra,
		}
		n, err := v3header.Build(fields, buf)
		if err != nil {
			return errInvalidArgument("header", err)
		}
		record := buf[:n]
		v3header.RewriteSampleCount(record, 0)
		v3header.RewriteDataLength(record, 0)
		v3header.ZeroCRC(record)
		crc := crc32c.Checksum(record)
		v3header.RewriteCRC(record, crc)
		handler(record, opts.UserData)
		return nil
	}

	doc, err := xheader.Parse(lr.Extra)
	if err != nil {
		return errMalformedExtraHeaders("extra", err)
	}
	built, err := v2header.Build(v2header.Fields{
		SID:                sidParsed,
		PublicationQuality: lr.publicationQuality(),
		StartTime:          lr.StartTime,
		SampleRate:         lr.SampleRate,
		Encoding:           byte(EncodingTEXT),
		RecLen:             reclen,
		CallerFlags:        byte(lr.Flags),
		Extra:              doc,
	}, 0)
	if err != nil {
		return classifyV2BuildErr(err)
	}
	buf := p.recordScratch(reclen)
	copy(buf, built.Header)
	for i := len(built.Header); i < reclen; i++ {
		buf[i] = 0
	}
	v2header.RewriteSampleCount(buf, 0)
	handler(buf, opts.UserData)
	return nil
}

func classifyV2BuildErr(err error) error {
	switch goerrors.Cause(err) {
	case mstime.ErrYearOutOfRange:
		return errDataOutOfRange("start_time", err)
	case raterate.ErrOutOfRange:
		return errDataOutOfRange("sample_rate", err)
	case v2header.ErrBlockChainOverflow:
		return errBufferTooSmall("blockette_chain", err)
	case v2header.ErrMalformedCalibration:
		return errMalformedExtraHeaders("calibration", err)
	default:
		return errInvalidArgument("v2_header", err)
	}
}

// packV3 drives the BUILD_HEADER -> ENCODE -> FINALIZE -> EMIT loop of
// spec §4.8 for v3 output. The header is built once; only the time,
// sample-count, data-length and CRC fields are rewritten per
// continuation record.
func (p *Packer) packV3(lr *LogicalRecord, sidParsed sid.Parsed, enc Encoding, reclen int, rateHz float64, handler RecordHandler, opts PackOptions) (int, error) {
	headerLen := v3header.FixedLen + len(lr.SID) + len(lr.Extra)
	if headerLen >= reclen {
		err := errBufferTooSmall("header", fmt.Errorf("v3 header %d does not leave room for payload in reclen %d", headerLen, reclen))
		p.logf("mseedpack: pack %s: %v", lr.SID, err)
		return 0, err
	}
	payloadBudget := reclen - headerLen
	maxSamples, dstLen, err := maxSamplesForPayload(enc, payloadBudget)
	if err != nil {
		p.logf("mseedpack: pack %s: %v", lr.SID, err)
		return 0, err
	}

	record := p.recordScratch(reclen)

	bd, err := mstime.BreakDown(lr.StartTime)
	if err != nil {
		werr := errDataOutOfRange("start_time", err)
		p.logf("mseedpack: pack %s: %v", lr.SID, werr)
		return 0, werr
	}
	fields := v3header.Fields{
		Flags:        byte(lr.Flags),
		NsecOfSec:    uint32(bd.Nsec),
		Year:         uint16(bd.Year),
		Day:          uint16(bd.Day),
		Hour:         uint8(bd.Hour),
		Min:          uint8(bd.Min),
		Sec:          uint8(bd.Sec),
		Encoding:     byte(enc),
		SampleRate:   v3SampleRateField(rateHz),
		PubVersion:   lr.PublicationVersion,
		SID:          []byte(lr.SID),
		ExtraHeaders: lr.Extra,
	}
	if _, err := v3header.Build(fields, record); err != nil {
		werr := errInvalidArgument("header", err)
		p.logf("mseedpack: pack %s: %v", lr.SID, werr)
		return 0, werr
	}
	header := record[:headerLen]

	records := 0
	packed := 0
	for packed < lr.NumSamples {
		remaining := lr.NumSamples - packed
		if remaining <= maxSamples && !opts.flush() {
			break
		}
		if packed > 0 {
			recordStart := mstime.Advance(lr.StartTime, int64(packed), rateHz)
			bd, err := mstime.BreakDown(recordStart)
			if err != nil {
				werr := errDataOutOfRange("start_time", err)
				p.logf("mseedpack: pack %s: %v", lr.SID, werr)
				return records, werr
			}
			v3header.RewriteTime(header, uint32(bd.Nsec), uint16(bd.Year), uint16(bd.Day), uint8(bd.Hour), uint8(bd.Min), uint8(bd.Sec))
		}

		dst := p.payloadScratch(dstLen)
		consumed, written, err := p.encodeInto(enc, lr, packed, maxSamples, byteorder.LittleEndian, dst)
		if err != nil {
			werr := errInternal("encoder", err)
			p.logf("mseedpack: pack %s: %v", lr.SID, werr)
			return records, werr
		}
		if consumed == 0 {
			werr := errInternal("encoder", fmt.Errorf("encoder consumed zero samples with %d remaining", remaining))
			p.logf("mseedpack: pack %s: %v", lr.SID, werr)
			return records, werr
		}

		full := record[:headerLen+written]
		copy(full[headerLen:], dst[:written])
		v3header.RewriteSampleCount(full, uint32(consumed))
		v3header.RewriteDataLength(full, uint32(written))
		v3header.ZeroCRC(full)
		crc := crc32c.Checksum(full)
		v3header.RewriteCRC(full, crc)

		handler(full, opts.UserData)
		records++
		packed += consumed
	}
	return records, nil
}

// packV2 mirrors packV3 for the fixed-length, big-endian v2 format:
// every emitted record is exactly reclen bytes (spec invariant §3.2).
func (p *Packer) packV2(lr *LogicalRecord, sidParsed sid.Parsed, enc Encoding, reclen int, rateHz float64, handler RecordHandler, opts PackOptions) (int, error) {
	doc, err := xheader.Parse(lr.Extra)
	if err != nil {
		werr := errMalformedExtraHeaders("extra", err)
		p.logf("mseedpack: pack %s: %v", lr.SID, werr)
		return 0, werr
	}

	built, err := v2header.Build(v2header.Fields{
		SID:                sidParsed,
		PublicationQuality: lr.publicationQuality(),
		StartTime:          lr.StartTime,
		SampleRate:         lr.SampleRate,
		Encoding:           byte(enc),
		RecLen:             reclen,
		CallerFlags:        byte(lr.Flags),
		Extra:              doc,
	}, 0)
	if err != nil {
		werr := classifyV2BuildErr(err)
		p.logf("mseedpack: pack %s: %v", lr.SID, werr)
		return 0, werr
	}

	payloadBudget := reclen - built.DataOffset
	maxSamples, _, err := maxSamplesForPayload(enc, payloadBudget)
	if err != nil {
		p.logf("mseedpack: pack %s: %v", lr.SID, err)
		return 0, err
	}

	records := 0
	packed := 0
	for packed < lr.NumSamples {
		remaining := lr.NumSamples - packed
		if remaining <= maxSamples && !opts.flush() {
			break
		}
		if packed > 0 {
			recordStart := mstime.Advance(lr.StartTime, int64(packed), rateHz)
			if err := v2header.RewriteStartTime(built, recordStart); err != nil {
				werr := errDataOutOfRange("start_time", err)
				p.logf("mseedpack: pack %s: %v", lr.SID, werr)
				return records, werr
			}
		}

		record := p.recordScratch(reclen)
		copy(record, built.Header)
		for i := len(built.Header); i < reclen; i++ {
			record[i] = 0
		}

		dst := record[built.DataOffset:reclen]
		consumed, written, err := p.encodeInto(enc, lr, packed, maxSamples, byteorder.BigEndian, dst)
		if err != nil {
			werr := errInternal("encoder", err)
			p.logf("mseedpack: pack %s: %v", lr.SID, werr)
			return records, werr
		}
		if consumed == 0 {
			werr := errInternal("encoder", fmt.Errorf("encoder consumed zero samples with %d remaining", remaining))
			p.logf("mseedpack: pack %s: %v", lr.SID, werr)
			return records, werr
		}
		for i := built.DataOffset + written; i < reclen; i++ {
			record[i] = 0
		}
		v2header.RewriteSampleCount(record, uint16(consumed))

		handler(record, opts.UserData)
		records++
		packed += consumed
	}
	return records, nil
}

// encodeInto dispatches to the encoder matching enc (spec §4.4-§4.5).
// Steim is always big-endian regardless of format version; the other
// encoders swap to the wire order their caller already selected via
// the dst buffer's target format (v2 callers build with v2's
// big-endian order, v3 with little-endian, both passed through the
// top-level wire order resolved here).
func (p *Packer) encodeInto(enc Encoding, lr *LogicalRecord, packed, maxSamples int, wire byteorder.Order, dst []byte) (consumed, written int, err error) {
	switch enc {
	case EncodingTEXT:
		consumed, written = sampenc.EncodeText(lr.TextSamples[packed:lr.NumSamples], maxSamples, dst)
		return consumed, written, nil
	case EncodingINT16:
		return sampenc.EncodeInt16(lr.Int32Samples[packed:lr.NumSamples], maxSamples, wire, dst)
	case EncodingINT32:
		consumed, written = sampenc.EncodeInt32(lr.Int32Samples[packed:lr.NumSamples], maxSamples, wire, dst)
		return consumed, written, nil
	case EncodingFLOAT32:
		consumed, written = sampenc.EncodeFloat32(lr.Float32Samples[packed:lr.NumSamples], maxSamples, wire, dst)
		return consumed, written, nil
	case EncodingFLOAT64:
		consumed, written = sampenc.EncodeFloat64(lr.Float64Samples[packed:lr.NumSamples], maxSamples, wire, dst)
		return consumed, written, nil
	case EncodingSTEIM1:
		return steim.Encode1(lr.Int32Samples[packed:lr.NumSamples], maxSamples, dst)
	case EncodingSTEIM2:
		return steim.Encode2(lr.Int32Samples[packed:lr.NumSamples], maxSamples, dst)
	default:
		return 0, 0, fmt.Errorf("mseedpack: unreachable: unsupported encoding %d", enc)
	}
}
