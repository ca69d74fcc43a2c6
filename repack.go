package mseedpack

import (
	"fmt"

	"github.com/fdsn-go/mseedpack/internal/crc32c"
	"github.com/fdsn-go/mseedpack/internal/mstime"
	"github.com/fdsn-go/mseedpack/internal/sid"
	"github.com/fdsn-go/mseedpack/internal/v2header"
	"github.com/fdsn-go/mseedpack/internal/v3header"
	"github.com/fdsn-go/mseedpack/internal/xheader"
)

// RepackRecord implements the repack path (spec §4.9): it rebuilds
// only the header for the requested version and copies lr.RawRecord's
// payload bytes verbatim, finalizing the CRC for v3. Exactly one
// record is emitted — repack never re-splits a payload across
// multiple physical records, since the source payload is already a
// single encoded unit.
func (p *Packer) RepackRecord(lr *LogicalRecord, handler RecordHandler, opts PackOptions) (int, error) {
	if lr == nil {
		return 0, errInvalidArgument("logical_record", nil)
	}
	if handler == nil {
		return 0, errInvalidArgument("record_handler", nil)
	}
	if lr.RawRecord == nil {
		err := errInvalidArgument("raw_record", fmt.Errorf("repack requires a RawRecord reference"))
		p.logf("mseedpack: repack %s: %v", lr.SID, err)
		return 0, err
	}
	rr := lr.RawRecord
	if rr.DataOffset < 0 || rr.DataLength < 0 || rr.DataOffset+rr.DataLength > len(rr.Bytes) {
		err := errInvalidArgument("raw_record", fmt.Errorf("raw record data range [%d,%d) out of bounds for %d-byte source", rr.DataOffset, rr.DataOffset+rr.DataLength, len(rr.Bytes)))
		p.logf("mseedpack: repack %s: %v", lr.SID, err)
		return 0, err
	}

	enc := lr.effectiveEncoding()
	version := lr.effectiveFormatVersion()
	if opts.ver2() {
		version = 2
	}
	reclen := lr.effectiveMaxRecordLength()

	sidParsed, err := sid.Parse(lr.SID)
	if err != nil {
		werr := errInvalidArgument("sid", err)
		p.logf("mseedpack: repack %s: %v", lr.SID, werr)
		return 0, werr
	}
	rateHz := effectiveRateHz(lr.SampleRate)

	if version == 3 {
		if reclen < 40 || reclen > 1<<20 {
			werr := errInvalidArgument("max_record_length", fmt.Errorf("v3 reclen %d out of [40, 2^20]", reclen))
			p.logf("mseedpack: repack %s: %v", lr.SID, werr)
			return 0, werr
		}
		headerLen := v3header.FixedLen + len(lr.SID) + len(lr.Extra)
		total := headerLen + rr.DataLength
		if total > reclen {
			werr := errBufferTooSmall("data", fmt.Errorf("repack header+data %d exceeds reclen %d", total, reclen))
			p.logf("mseedpack: repack %s: %v", lr.SID, werr)
			return 0, werr
		}
		bd, err := mstime.BreakDown(lr.StartTime)
		if err != nil {
			werr := errDataOutOfRange("start_time", err)
			p.logf("mseedpack: repack %s: %v", lr.SID, werr)
			return 0, werr
		}
		buf := p.recordScratch(total)
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
		n, err := v3header.Build(fields, buf)
		if err != nil {
			werr := errInvalidArgument("header", err)
			p.logf("mseedpack: repack %s: %v", lr.SID, werr)
			return 0, werr
		}
		record := buf[:n+rr.DataLength]
		copy(record[n:], rr.Bytes[rr.DataOffset:rr.DataOffset+rr.DataLength])
		v3header.RewriteSampleCount(record, uint32(lr.NumSamples))
		v3header.RewriteDataLength(record, uint32(rr.DataLength))
		v3header.ZeroCRC(record)
		crc := crc32c.Checksum(record)
		v3header.RewriteCRC(record, crc)
		handler(record, opts.UserData)
		return 1, nil
	}

	if lr.NumSamples > 65535 {
		werr := errInvalidArgument("num_samples", fmt.Errorf("v2 sample count field is 16 bits wide, got %d", lr.NumSamples))
		p.logf("mseedpack: repack %s: %v", lr.SID, werr)
		return 0, werr
	}
	if reclen < 128 || reclen > 1<<16 || reclen&(reclen-1) != 0 {
		werr := errInvalidArgument("max_record_length", fmt.Errorf("v2 reclen %d out of [128, 65536] or not a power of two", reclen))
		p.logf("mseedpack: repack %s: %v", lr.SID, werr)
		return 0, werr
	}
	doc, err := xheader.Parse(lr.Extra)
	if err != nil {
		werr := errMalformedExtraHeaders("extra", err)
		p.logf("mseedpack: repack %s: %v", lr.SID, werr)
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
	}, uint16(lr.NumSamples))
	if err != nil {
		werr := classifyV2BuildErr(err)
		p.logf("mseedpack: repack %s: %v", lr.SID, werr)
		return 0, werr
	}
	if built.DataOffset+rr.DataLength > reclen {
		werr := errBufferTooSmall("data", fmt.Errorf("repack payload %d does not fit after %d-byte header in reclen %d", rr.DataLength, built.DataOffset, reclen))
		p.logf("mseedpack: repack %s: %v", lr.SID, werr)
		return 0, werr
	}

	record := p.recordScratch(reclen)
	copy(record, built.Header)
	for i := len(built.Header); i < reclen; i++ {
		record[i] = 0
	}
	copy(record[built.DataOffset:], rr.Bytes[rr.DataOffset:rr.DataOffset+rr.DataLength])
	for i := built.DataOffset + rr.DataLength; i < reclen; i++ {
		record[i] = 0
	}
	v2header.RewriteSampleCount(record, uint16(lr.NumSamples))

	handler(record, opts.UserData)
	return 1, nil
}
