// Package steim implements the Steim-1 and Steim-2 first-difference frame
// packers (spec §4.5). Output is a sequence of 64-byte frames, each a
// 32-bit nibble control word followed by 15 32-bit data words, always
// written big-endian regardless of record format version.
//
// The bit-accumulation technique (pack signed values into a fixed-width
// field, MSB first, complete words at a time) follows the shape of
// schollz-goflac's bitwriter.go; the "try the widest code that fits, fall
// back narrower" word-selection loop follows the dispatch shape used by
// mewkiz-flac's subframe/header encoders (see DESIGN.md).
package steim

import (
	"encoding/binary"
	"fmt"
)

// ErrBufferTooSmall is returned when dst cannot hold even one frame.
var ErrBufferTooSmall = fmt.Errorf("steim: destination buffer smaller than one 64-byte frame")

const frameSize = 64
const wordsPerFrame = 15

// Frame1MaxSamples and Frame2MaxSamples are the upper bound on samples per 64-byte frame used by
// the record driver to compute a record's payload budget (spec §4.8).
const (
	Frame1MaxSamples = 60  // Steim-1: worst case is 4 diffs/word * 15 words = 60
	Frame2MaxSamples = 105 // Steim-2: worst case is 7 diffs/word * 15 words = 105
)

type codeOption struct {
	diffs   int
	bits    int
	class   uint32
	hasSub  bool
	subBits uint32
}

var steim1Codes = []codeOption{
	{diffs: 4, bits: 8, class: 0b01},
	{diffs: 2, bits: 16, class: 0b10},
	{diffs: 1, bits: 32, class: 0b11},
}

var steim2Codes = []codeOption{
	{diffs: 7, bits: 4, class: 0b11, hasSub: true, subBits: 0b10},
	{diffs: 6, bits: 5, class: 0b11, hasSub: true, subBits: 0b01},
	{diffs: 5, bits: 6, class: 0b11, hasSub: true, subBits: 0b00},
	{diffs: 4, bits: 8, class: 0b01},
	{diffs: 3, bits: 10, class: 0b10, hasSub: true, subBits: 0b11},
	{diffs: 2, bits: 15, class: 0b10, hasSub: true, subBits: 0b10},
	{diffs: 1, bits: 30, class: 0b10, hasSub: true, subBits: 0b01},
}

// Encode1 packs samples using Steim-1 into dst, consuming at most
// maxSamples samples and writing at most len(dst) bytes (which must be a
// multiple of 64 worth of capacity — Encode1 only ever writes whole
// frames). It returns the number of samples actually encoded and the
// number of bytes written.
func Encode1(samples []int32, maxSamples int, dst []byte) (consumed, written int, err error) {
	return encode(samples, maxSamples, dst, steim1Codes)
}

// Encode2 packs samples using Steim-2. Unlike Steim-1, a single
// difference may require more than 30 bits, in which case encoding stops
// one sample short of what maxSamples/dst would otherwise allow (spec
// §4.5 termination rule, §8.9).
func Encode2(samples []int32, maxSamples int, dst []byte) (consumed, written int, err error) {
	return encode(samples, maxSamples, dst, steim2Codes)
}

func encode(samples []int32, maxSamples int, dst []byte, codes []codeOption) (consumed, written int, err error) {
	if len(dst) < frameSize {
		return 0, 0, ErrBufferTooSmall
	}
	n := len(samples)
	if maxSamples >= 0 && maxSamples < n {
		n = maxSamples
	}
	if n <= 0 {
		return 0, 0, nil
	}

	diffs := make([]int32, n-1)
	for i := 1; i < n; i++ {
		diffs[i-1] = samples[i] - samples[i-1]
	}

	maxFrames := len(dst) / frameSize
	frames := make([][1 + wordsPerFrame]uint32, 0, maxFrames)

	pos := 0
	for frameIdx := 0; frameIdx < maxFrames; frameIdx++ {
		var frame [1 + wordsPerFrame]uint32
		startSlot := 1
		if frameIdx == 0 {
			startSlot = 3 // words 1,2 reserved for integration constants
		}

		truncated := false
		slot := startSlot
		for slot <= wordsPerFrame {
			if pos >= len(diffs) {
				break
			}
			remaining := diffs[pos:]
			opt, k := pickCode(remaining, codes)
			if opt == nil {
				truncated = true
				break
			}
			frame[slot] = packWord(remaining[:k], opt)
			frame[0] |= opt.class << (30 - uint(2*slot))
			pos += k
			slot++
		}

		frames = append(frames, frame)

		if truncated || pos >= len(diffs) {
			break
		}
	}

	consumedSamples := pos + 1
	if consumedSamples > n {
		consumedSamples = n
	}

	frames[0][1] = uint32(samples[0])
	frames[0][2] = uint32(samples[consumedSamples-1])

	out := dst[:0]
	for _, frame := range frames {
		var buf [frameSize]byte
		for i, w := range frame {
			binary.BigEndian.PutUint32(buf[i*4:i*4+4], w)
		}
		out = append(out, buf[:]...)
	}

	return consumedSamples, len(out), nil
}

// pickCode finds the widest-consumption code in codes whose next diffs
// all fit its bit width, given the remaining difference stream.
func pickCode(remaining []int32, codes []codeOption) (*codeOption, int) {
	for i := range codes {
		c := &codes[i]
		if len(remaining) < c.diffs {
			continue
		}
		fits := true
		for j := 0; j < c.diffs; j++ {
			if !fitsSigned(remaining[j], c.bits) {
				fits = false
				break
			}
		}
		if fits {
			return c, c.diffs
		}
	}
	return nil, 0
}

func fitsSigned(v int32, bits int) bool {
	if bits >= 32 {
		return true
	}
	lo := int32(-1) << (bits - 1)
	hi := -lo - 1
	return v >= lo && v <= hi
}

// packWord packs len(diffs) == opt.diffs signed values into a single
// 32-bit word, MSB first, each truncated to opt.bits two's-complement
// bits. When opt.hasSub, the word's top 2 bits hold opt.subBits instead
// of difference data.
func packWord(diffs []int32, opt *codeOption) uint32 {
	var w uint32
	pos := 0
	if opt.hasSub {
		w = (opt.subBits & 0x3) << 30
		pos = 2
	}
	for _, v := range diffs {
		var mask uint32 = 0xffffffff
		if opt.bits < 32 {
			mask = uint32(1)<<uint(opt.bits) - 1
		}
		uv := uint32(v) & mask
		shift := 32 - pos - opt.bits
		w |= uv << uint(shift)
		pos += opt.bits
	}
	return w
}
