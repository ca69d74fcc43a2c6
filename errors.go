package mseedpack

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a packing failure per the error taxonomy: every failure
// surfaces as one of these kinds rather than as an ad-hoc error string.
type Kind int

const (
	// InvalidArgument covers malformed call parameters: missing sample
	// buffer, missing handler, reclen out of range or not a power of two
	// for v2, unsupported encoding/sample-type pairing, an unparseable
	// or oversized source identifier, or a sample count that overflows
	// the destination format's field width.
	InvalidArgument Kind = iota
	// DataOutOfRange covers values that are individually well-formed but
	// fall outside what the wire format can represent: an INT16 sample
	// outside +/-32767, a time field outside the representable range, or
	// a sample rate outside the factor/multiplier range.
	DataOutOfRange
	// BufferTooSmall covers destination-capacity failures: the computed
	// header exceeds reclen, the blockette chain would overflow the
	// record, or there isn't room for one Steim frame or one sample.
	BufferTooSmall
	// MalformedExtraHeaders covers JSON parse failure or a calibration
	// entry lacking both a recognized Type and an EndTime.
	MalformedExtraHeaders
	// Internal covers encoder post-condition violations, such as a
	// Steim reverse integration constant mismatch.
	Internal
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case DataOutOfRange:
		return "data out of range"
	case BufferTooSmall:
		return "buffer too small"
	case MalformedExtraHeaders:
		return "malformed extra headers"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// PackError is returned by every failing operation in this package. It
// carries the failure Kind, the name of the offending Field and, where
// applicable, a wrapped cause accessible via errors.Unwrap. PackError has
// no Cause method, so pkg/errors' errors.Cause stops at the PackError.
type PackError struct {
	Kind  Kind
	Field string
	cause error
}

func (e *PackError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("mseedpack: %s: %s", e.Field, e.Kind)
	}
	return fmt.Sprintf("mseedpack: %s", e.Kind)
}

func (e *PackError) Unwrap() error { return e.cause }

// newErr builds a *PackError of the given kind, annotating field and
// wrapping cause (which may be nil) with github.com/pkg/errors so the
// causal chain survives stack-trace formatting (%+v) if the caller logs it.
func newErr(kind Kind, field string, cause error) *PackError {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithMessage(cause, field)
	}
	return &PackError{Kind: kind, Field: field, cause: wrapped}
}

func errInvalidArgument(field string, cause error) error {
	return newErr(InvalidArgument, field, cause)
}

func errDataOutOfRange(field string, cause error) error {
	return newErr(DataOutOfRange, field, cause)
}

func errBufferTooSmall(field string, cause error) error {
	return newErr(BufferTooSmall, field, cause)
}

func errMalformedExtraHeaders(field string, cause error) error {
	return newErr(MalformedExtraHeaders, field, cause)
}

func errInternal(field string, cause error) error {
	return newErr(Internal, field, cause)
}
