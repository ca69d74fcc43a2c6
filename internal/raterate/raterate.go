// Package raterate reduces a floating-point sample rate to the SEED
// (factor, multiplier) pair of signed 16-bit integers used by v2 BTIME
// records and B100 blockettes (spec §4.3).
package raterate

import (
	"fmt"
	"math"
)

// ErrOutOfRange is returned when rate cannot be represented as a
// factor/multiplier pair within the documented domain.
var ErrOutOfRange = fmt.Errorf("raterate: rate out of representable range")

const maxInt16 = 32767

// Reduce converts rate into (factor, multiplier) using SEED convention:
//
//   - rate == 0: (0, 0).
//   - integer rate in [1, 32767]: (rate, 1).
//   - integer rate in (32767, 32767^2]: closest factor pair both fitting
//     in int16, found by a local search from floor(sqrt(rate)).
//   - non-integer rate in (1, 32767): continued-fraction rational
//     approximation, returned as (num, -den).
//   - non-integer rate in (0, 1): reduce 1/rate the same way, negate both.
func Reduce(rate float64) (factor, multiplier int16, err error) {
	if rate == 0 {
		return 0, 0, nil
	}
	neg := rate < 0
	r := math.Abs(rate)

	if r == math.Trunc(r) {
		ir := int64(r)
		if ir >= 1 && ir <= maxInt16 {
			return applySign(int16(ir), 1, neg)
		}
		if ir > maxInt16 && ir <= int64(maxInt16)*int64(maxInt16) {
			a, b, ok := closestFactorPair(ir)
			if !ok {
				return 0, 0, ErrOutOfRange
			}
			return applySign(int16(a), int16(b), neg)
		}
		return 0, 0, ErrOutOfRange
	}

	if r > 1 && r < maxInt16 {
		num, den, ok := continuedFraction(r, 1e-8)
		if !ok {
			return 0, 0, ErrOutOfRange
		}
		return applySign(int16(num), int16(-den), neg)
	}

	if r > 0 && r < 1 {
		num, den, ok := continuedFraction(1/r, 1e-8)
		if !ok {
			return 0, 0, ErrOutOfRange
		}
		// seconds/sample notation: negate both.
		return applySign(int16(-num), int16(den), neg)
	}

	return 0, 0, ErrOutOfRange
}

func applySign(a, b int16, neg bool) (int16, int16, error) {
	if !neg {
		return a, b, nil
	}
	return negClamped(a), b, nil
}

func negClamped(v int16) int16 {
	if v == math.MinInt16 {
		return math.MaxInt16
	}
	return -v
}

// closestFactorPair finds integer a near floor(sqrt(r)) such that
// b = floor(r/a) fits in int16, minimizing |r - a*b|. It decrements a
// while r % a != 0 and b stays in range, tracking the best pair seen, and
// accepts the best found on exhaustion. This is the spec's documented
// local-search behavior (§4.3, §9 open question) — it is not guaranteed to
// find the global optimum for composite rates near 32767^2, and this repo
// keeps that local-minimum behavior verbatim rather than "fixing" it, to
// preserve the spec's documented byte-for-byte output.
func closestFactorPair(r int64) (a, b int64, ok bool) {
	start := int64(math.Sqrt(float64(r)))
	if start < 1 {
		start = 1
	}
	if start > maxInt16 {
		start = maxInt16
	}

	bestA, bestB := int64(0), int64(0)
	bestDiff := int64(-1)

	for cand := start; cand >= 1; cand-- {
		other := r / cand
		if other > maxInt16 {
			break
		}
		diff := absInt64(r - cand*other)
		if bestDiff == -1 || diff < bestDiff {
			bestDiff = diff
			bestA, bestB = cand, other
		}
		if diff == 0 {
			break
		}
	}
	if bestDiff == -1 {
		return 0, 0, false
	}
	return bestA, bestB, true
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// continuedFraction finds num/den approximating r with |num|,|den| <= 32767
// and |num/den - r| <= precision, via the standard continued-fraction
// convergent expansion.
func continuedFraction(r float64, precision float64) (num, den int64, ok bool) {
	// Convergents of the continued fraction expansion of r.
	h0, h1 := int64(0), int64(1)
	k0, k1 := int64(1), int64(0)
	x := r

	for i := 0; i < 64; i++ {
		a := int64(math.Floor(x))
		h2 := a*h1 + h0
		k2 := a*k1 + k0
		if h2 > maxInt16 || k2 > maxInt16 {
			break
		}
		h0, h1 = h1, h2
		k0, k1 = k1, k2
		if h1 != 0 && math.Abs(float64(h1)/float64(k1)-r) <= precision {
			return h1, k1, true
		}
		frac := x - float64(a)
		if frac < 1e-12 {
			break
		}
		x = 1 / frac
	}
	if h1 == 0 || k1 == 0 {
		return 0, 0, false
	}
	return h1, k1, true
}

// Nominal reconstructs the effective sample rate implied by (factor,
// multiplier) per SEED convention: a positive factor multiplies, a
// negative factor divides (1/-factor); a positive multiplier multiplies
// that result, a negative multiplier divides it (by -multiplier).
func Nominal(factor, multiplier int16) float64 {
	if factor == 0 || multiplier == 0 {
		return 0
	}
	f := float64(factor)
	m := float64(multiplier)

	var rate float64
	if f > 0 {
		rate = f
	} else {
		rate = 1.0 / -f
	}
	if m > 0 {
		rate *= m
	} else {
		rate /= -m
	}
	return rate
}
