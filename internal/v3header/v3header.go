// Package v3header builds the 40-byte little-endian miniSEED v3 fixed
// header plus its trailing SID and extra-headers blob (spec §4.6).
package v3header

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FixedLen is the length in bytes of the v3 fixed header, before the
// variable-length SID and extra-headers blob.
const FixedLen = 40

const (
	magic0 = 'M'
	magic1 = 'S'
	version = 3
)

// ErrSIDTooLong is returned when the SID exceeds 255 bytes.
var ErrSIDTooLong = fmt.Errorf("v3header: sid exceeds 255 bytes")

// ErrExtraTooLong is returned when the extra-headers blob exceeds 65535
// bytes.
var ErrExtraTooLong = fmt.Errorf("v3header: extra headers exceed 65535 bytes")

// Fields holds every value the fixed header needs; CRC, sample count
// and data length are written as placeholders by Build and patched in
// place later by the record driver (§4.8 step 3, §4.9).
type Fields struct {
	Flags        byte
	NsecOfSec    uint32
	Year         uint16
	Day          uint16
	Hour         uint8
	Min          uint8
	Sec          uint8
	Encoding     byte
	SampleRate   float64 // period-encoded (-1/rate) by caller when 0<rate<1, per §4.6
	PubVersion   uint8
	SID          []byte
	ExtraHeaders []byte
}

// Offsets into the 40-byte fixed header, named for RewriteSampleCount /
// RewriteCRC / RewriteDataLength which patch fields in place without
// rebuilding the whole header (spec §4.8 step 7).
const (
	offMagic       = 0
	offVersion     = 2
	offFlags       = 3
	offNsec        = 4
	offYear        = 8
	offDay         = 10
	offHour        = 12
	offMin         = 13
	offSec         = 14
	offEncoding    = 15
	offSampleRate  = 16
	offSampleCount = 24
	offCRC         = 28
	offPubVersion  = 32
	offSIDLen      = 33
	offExtraLen    = 34
	offDataLen     = 36
)

// Build writes the 40-byte fixed header followed by the SID and
// extra-headers bytes into dst, which must be at least
// FixedLen+len(f.SID)+len(f.ExtraHeaders) bytes. SampleCount, CRC and
// DataLength are written as zero; the caller finalizes them via
// RewriteSampleCount / RewriteDataLength / RewriteCRC once the payload
// is known. Returns the total header length written.
func Build(f Fields, dst []byte) (headerLen int, err error) {
	if len(f.SID) > 255 {
		return 0, ErrSIDTooLong
	}
	if len(f.ExtraHeaders) > 65535 {
		return 0, ErrExtraTooLong
	}
	total := FixedLen + len(f.SID) + len(f.ExtraHeaders)
	if len(dst) < total {
		return 0, fmt.Errorf("v3header: destination buffer too small for header")
	}

	dst[offMagic] = magic0
	dst[offMagic+1] = magic1
	dst[offVersion] = version
	dst[offFlags] = f.Flags
	binary.LittleEndian.PutUint32(dst[offNsec:], f.NsecOfSec)
	binary.LittleEndian.PutUint16(dst[offYear:], f.Year)
	binary.LittleEndian.PutUint16(dst[offDay:], f.Day)
	dst[offHour] = f.Hour
	dst[offMin] = f.Min
	dst[offSec] = f.Sec
	dst[offEncoding] = f.Encoding
	binary.LittleEndian.PutUint64(dst[offSampleRate:], math.Float64bits(f.SampleRate))
	binary.LittleEndian.PutUint32(dst[offSampleCount:], 0)
	binary.LittleEndian.PutUint32(dst[offCRC:], 0)
	dst[offPubVersion] = f.PubVersion
	dst[offSIDLen] = uint8(len(f.SID))
	binary.LittleEndian.PutUint16(dst[offExtraLen:], uint16(len(f.ExtraHeaders)))
	binary.LittleEndian.PutUint32(dst[offDataLen:], 0)

	n := FixedLen
	n += copy(dst[n:], f.SID)
	n += copy(dst[n:], f.ExtraHeaders)
	return n, nil
}

// RewriteSampleCount patches the 4-byte sample count field in place.
func RewriteSampleCount(header []byte, count uint32) {
	binary.LittleEndian.PutUint32(header[offSampleCount:], count)
}

// RewriteDataLength patches the 4-byte data length field in place.
func RewriteDataLength(header []byte, length uint32) {
	binary.LittleEndian.PutUint32(header[offDataLen:], length)
}

// RewriteTime patches the time fields in place for a continuation
// record (spec §4.8 step 7).
func RewriteTime(header []byte, nsec uint32, year, day uint16, hour, min, sec uint8) {
	binary.LittleEndian.PutUint32(header[offNsec:], nsec)
	binary.LittleEndian.PutUint16(header[offYear:], year)
	binary.LittleEndian.PutUint16(header[offDay:], day)
	header[offHour] = hour
	header[offMin] = min
	header[offSec] = sec
}

// RewriteCRC patches the 4-byte CRC field in place.
func RewriteCRC(header []byte, crc uint32) {
	binary.LittleEndian.PutUint32(header[offCRC:], crc)
}

// ZeroCRC zeros the CRC field, as required before computing the CRC
// over the finished record (spec §4.1, invariant §3.3).
func ZeroCRC(header []byte) {
	binary.LittleEndian.PutUint32(header[offCRC:], 0)
}
