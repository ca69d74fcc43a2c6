// Package crc32c computes CRC-32C (Castagnoli, reflected) checksums.
//
// The standard library's hash/crc32 package already provides the exact,
// byte-for-byte Castagnoli table used by the miniSEED v3 wire format, so
// this package is a thin wrapper rather than a reimplementation — see
// DESIGN.md for why a third-party CRC engine (e.g. snksoft/crc, which
// appears elsewhere in the reference pack) would add nothing here.
package crc32c

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// Checksum computes the CRC-32C of data.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, table)
}

// ChecksumZeroed computes the CRC-32C of buf with the byte range
// [fieldOffset, fieldOffset+4) treated as zero, without mutating buf.
// This implements the "CRC field zeroed" requirement (spec §4.1, §8.4)
// without requiring the caller to zero and restore the field in place.
func ChecksumZeroed(buf []byte, fieldOffset int) uint32 {
	crc := crc32.New(table)
	crc.Write(buf[:fieldOffset])
	crc.Write([]byte{0, 0, 0, 0})
	crc.Write(buf[fieldOffset+4:])
	return crc.Sum32()
}
