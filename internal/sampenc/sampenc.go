// Package sampenc implements the non-Steim sample encoders: TEXT, INT16,
// INT32, FLOAT32, FLOAT64 (spec §4.4). Each takes a source buffer and a
// destination byte slice and returns (samplesConsumed, bytesWritten),
// never writing past the destination bound.
package sampenc

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fdsn-go/mseedpack/internal/byteorder"
)

// ErrSampleOutOfRange is returned by EncodeInt16 when a value does not
// fit in a signed 16-bit field.
var ErrSampleOutOfRange = fmt.Errorf("sampenc: sample out of int16 range")

func clampCount(avail int, maxSamples int, cap int) int {
	n := avail
	if maxSamples >= 0 && maxSamples < n {
		n = maxSamples
	}
	if cap < n {
		n = cap
	}
	if n < 0 {
		n = 0
	}
	return n
}

// EncodeText copies up to min(len(text), maxSamples, len(out)) bytes of
// text into out; one byte equals one sample.
func EncodeText(text []byte, maxSamples int, out []byte) (consumed, written int) {
	n := clampCount(len(text), maxSamples, len(out))
	copy(out, text[:n])
	return n, n
}

// EncodeInt16 writes up to maxSamples samples as 2-byte signed integers
// in wire byte order. Fails if any encoded value is outside
// [-32768, 32767] (source samples are int32, per spec §3 sample_type "i").
func EncodeInt16(samples []int32, maxSamples int, wire byteorder.Order, out []byte) (consumed, written int, err error) {
	n := clampCount(len(samples), maxSamples, len(out)/2)
	for i := 0; i < n; i++ {
		v := samples[i]
		if v < -32768 || v > 32767 {
			return 0, 0, ErrSampleOutOfRange
		}
		putUint16(out[i*2:], uint16(int16(v)), wire)
	}
	return n, n * 2, nil
}

// EncodeInt32 writes up to maxSamples samples as 4-byte signed integers
// in wire byte order.
func EncodeInt32(samples []int32, maxSamples int, wire byteorder.Order, out []byte) (consumed, written int) {
	n := clampCount(len(samples), maxSamples, len(out)/4)
	for i := 0; i < n; i++ {
		putUint32(out[i*4:], uint32(samples[i]), wire)
	}
	return n, n * 4
}

// EncodeFloat32 writes up to maxSamples samples as 4-byte IEEE-754
// floats in wire byte order, bit-preserving.
func EncodeFloat32(samples []float32, maxSamples int, wire byteorder.Order, out []byte) (consumed, written int) {
	n := clampCount(len(samples), maxSamples, len(out)/4)
	for i := 0; i < n; i++ {
		putNativeUint32(out[i*4:], math.Float32bits(byteorder.SwapFloat32(samples[i], wire)))
	}
	return n, n * 4
}

// EncodeFloat64 writes up to maxSamples samples as 8-byte IEEE-754
// doubles in wire byte order, bit-preserving.
func EncodeFloat64(samples []float64, maxSamples int, wire byteorder.Order, out []byte) (consumed, written int) {
	n := clampCount(len(samples), maxSamples, len(out)/8)
	for i := 0; i < n; i++ {
		putNativeUint64(out[i*8:], math.Float64bits(byteorder.SwapFloat64(samples[i], wire)))
	}
	return n, n * 8
}

// putUint16/32/64 swap v into wire order via byteorder.Swap* (a no-op
// when wire already matches the host) and then lay the result down in
// the host's own byte order, which — since the value was swapped
// first when needed — reproduces the requested wire order on the
// wire.
func putUint16(b []byte, v uint16, wire byteorder.Order) {
	putNativeUint16(b, byteorder.Swap16(v, wire))
}

func putUint32(b []byte, v uint32, wire byteorder.Order) {
	putNativeUint32(b, byteorder.Swap32(v, wire))
}

func putUint64(b []byte, v uint64, wire byteorder.Order) {
	putNativeUint64(b, byteorder.Swap64(v, wire))
}

func putNativeUint16(b []byte, v uint16) {
	if byteorder.HostOrder() == byteorder.BigEndian {
		binary.BigEndian.PutUint16(b, v)
	} else {
		binary.LittleEndian.PutUint16(b, v)
	}
}

func putNativeUint32(b []byte, v uint32) {
	if byteorder.HostOrder() == byteorder.BigEndian {
		binary.BigEndian.PutUint32(b, v)
	} else {
		binary.LittleEndian.PutUint32(b, v)
	}
}

func putNativeUint64(b []byte, v uint64) {
	if byteorder.HostOrder() == byteorder.BigEndian {
		binary.BigEndian.PutUint64(b, v)
	} else {
		binary.LittleEndian.PutUint64(b, v)
	}
}
