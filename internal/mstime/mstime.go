// Package mstime implements the time arithmetic a miniSEED record needs:
// breaking a nanosecond epoch timestamp into calendar fields, advancing a
// start time by N samples at a given rate with exact sub-microsecond
// precision, and deriving the v2 BTIME fsec/usec_offset split.
package mstime

import (
	"fmt"
	"math/big"
	"time"
)

// ErrYearOutOfRange is returned by BreakDown when the computed year would
// not fit in a 16-bit field.
var ErrYearOutOfRange = fmt.Errorf("mstime: year out of 16-bit range")

// Fields is a broken-down calendar time: year, day-of-year (1..366),
// hour, minute, second, and nanosecond-within-second.
type Fields struct {
	Year  int
	Day   int // 1..366
	Hour  int
	Min   int
	Sec   int
	Nsec  int // 0..999999999
}

// BreakDown converts nsSinceEpoch into broken-down calendar fields.
func BreakDown(nsSinceEpoch int64) (Fields, error) {
	sec := nsSinceEpoch / 1e9
	nsec := nsSinceEpoch % 1e9
	if nsec < 0 {
		nsec += 1e9
		sec--
	}
	t := time.Unix(sec, 0).UTC()
	year := t.Year()
	if year < -32768 || year > 32767 {
		return Fields{}, ErrYearOutOfRange
	}
	return Fields{
		Year: year,
		Day:  t.YearDay(),
		Hour: t.Hour(),
		Min:  t.Minute(),
		Sec:  t.Second(),
		Nsec: int(nsec),
	}, nil
}

// Advance returns t0 + round(n * 1e9 / rateHz) nanoseconds. rateHz is in
// samples/second; a negative value is not read as a seconds/sample period
// and yields a negative delta, so callers convert the negative period
// convention of sample_rate to samples/second before calling this.
//
// The multiplication is carried out with arbitrary-precision integers to
// avoid overflow for n up to a full record's worth of samples at rates
// between 1e-4 and 1e6 Hz, per spec §4.2.
func Advance(t0 int64, n int64, rateHz float64) int64 {
	if n == 0 || rateHz == 0 {
		return t0
	}
	// delta_ns = n * 1e9 / rateHz, rounded to nearest, ties away from zero.
	ratRate := new(big.Rat).SetFloat64(rateHz)
	num := new(big.Rat).SetInt64(n)
	num.Mul(num, big.NewRat(1_000_000_000, 1))
	num.Quo(num, ratRate)

	deltaNs := roundRat(num)
	return t0 + deltaNs
}

// roundRat rounds a big.Rat to the nearest integer, ties away from zero.
func roundRat(r *big.Rat) int64 {
	neg := r.Sign() < 0
	if neg {
		r = new(big.Rat).Neg(r)
	}
	num := new(big.Int).Set(r.Num())
	den := r.Denom()
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	twiceRem := new(big.Int).Lsh(rem, 1)
	if twiceRem.CmpAbs(den) >= 0 {
		quo.Add(quo, big.NewInt(1))
	}
	out := quo.Int64()
	if neg {
		out = -out
	}
	return out
}

// FsecSplit is the v2 BTIME-derived time fraction: a second-resolution
// time (secondsEpoch, the second the input falls in after rounding to the
// microsecond, which may be the next one), fsec in tenths-of-milliseconds
// (0..9999), and a signed microsecond offset in [-50, 49].
type FsecSplit struct {
	SecondsEpoch int64 // ns since epoch, a whole second
	Fsec         int   // 0..9999, units of 100us
	UsecOffset   int   // -50..49
}

// SplitFsec derives the v2 representation of nsSinceEpoch. It rounds the
// input to the nearest microsecond, splits into 100us buckets (fsec) and a
// signed microsecond remainder (usec_offset); if the remainder falls
// outside [-50, 49] it carries into fsec and renormalizes. Modulo of
// negative values borrows toward the preceding second, matching spec §4.2.
func SplitFsec(nsSinceEpoch int64) FsecSplit {
	sec := floorDiv(nsSinceEpoch, 1_000_000_000)
	nsIntoSec := nsSinceEpoch - sec*1_000_000_000

	// Round to nearest microsecond (ties away from zero; nsIntoSec >= 0 always).
	usIntoSec := (nsIntoSec + 500) / 1000
	if usIntoSec >= 1_000_000 {
		usIntoSec -= 1_000_000
		sec++
	}

	fsec := int(usIntoSec / 100)
	usecOffset := int(usIntoSec % 100)

	// usecOffset is in [0, 99]; fold into signed [-50, 49].
	if usecOffset > 49 {
		usecOffset -= 100
		fsec++
	}
	if fsec > 9999 {
		fsec -= 10000
		sec++
	}

	return FsecSplit{
		SecondsEpoch: sec * 1_000_000_000,
		Fsec:         fsec,
		UsecOffset:   usecOffset,
	}
}

// floorDiv returns the floor of a/b for b > 0, unlike Go's truncating /.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
