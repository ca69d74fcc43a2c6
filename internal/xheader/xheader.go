// Package xheader reads the subset of a record's extra-headers JSON
// document the v2 packer consults (spec §6). It treats the document as
// opaque and read-only, using gjson's path-query API rather than
// unmarshaling into a typed struct, since the packer only ever reads a
// handful of fixed paths and never mutates the document (spec §3
// invariant 1).
package xheader

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when the extra-headers bytes are not valid
// JSON.
var ErrMalformed = fmt.Errorf("xheader: malformed extra headers")

// Doc wraps a parsed extra-headers document.
type Doc struct {
	root gjson.Result
	raw  []byte
}

// Parse validates that raw (which may be empty) is well-formed JSON and
// returns a Doc for path queries. An empty input is treated as "{}".
func Parse(raw []byte) (Doc, error) {
	if len(raw) == 0 {
		return Doc{root: gjson.Parse("{}"), raw: raw}, nil
	}
	if !gjson.ValidBytes(raw) {
		return Doc{}, ErrMalformed
	}
	return Doc{root: gjson.ParseBytes(raw), raw: raw}, nil
}

func (d Doc) get(path string) gjson.Result {
	return d.root.Get(path)
}

// Sequence reads /FDSN/Sequence, clamped to [0, 999999]; ok is false if
// absent.
func (d Doc) Sequence() (seq uint32, ok bool) {
	r := d.get("FDSN.Sequence")
	if !r.Exists() {
		return 0, false
	}
	v := r.Uint()
	if v > 999999 {
		v = 999999
	}
	return uint32(v), true
}

// DataQuality reads /FDSN/DataQuality, a single character in RDQM.
func (d Doc) DataQuality() (ch byte, ok bool) {
	r := d.get("FDSN.DataQuality")
	if !r.Exists() {
		return 0, false
	}
	s := r.String()
	if len(s) != 1 {
		return 0, false
	}
	switch s[0] {
	case 'R', 'D', 'Q', 'M':
		return s[0], true
	default:
		return 0, false
	}
}

// EventFlags reads /FDSN/Event/{Begin,End,InProgress}.
type EventFlags struct {
	Begin, End, InProgress bool
}

func (d Doc) EventFlags() EventFlags {
	return EventFlags{
		Begin:      d.get("FDSN.Event.Begin").Bool(),
		End:        d.get("FDSN.Event.End").Bool(),
		InProgress: d.get("FDSN.Event.InProgress").Bool(),
	}
}

// LeapSecond reads /FDSN/Time/LeapSecond; ok is false if absent.
func (d Doc) LeapSecond() (value float64, ok bool) {
	r := d.get("FDSN.Time.LeapSecond")
	if !r.Exists() {
		return 0, false
	}
	return r.Float(), true
}

// TimeCorrection reads /FDSN/Time/Correction (seconds); ok is false if
// absent.
func (d Doc) TimeCorrection() (seconds float64, ok bool) {
	r := d.get("FDSN.Time.Correction")
	if !r.Exists() {
		return 0, false
	}
	return r.Float(), true
}

// TimeQuality reads /FDSN/Time/Quality (0..255); ok is false if absent.
func (d Doc) TimeQuality() (q uint8, ok bool) {
	r := d.get("FDSN.Time.Quality")
	if !r.Exists() {
		return 0, false
	}
	v := r.Uint()
	if v > 255 {
		v = 255
	}
	return uint8(v), true
}

// Flag reads one of the /FDSN/Flags/* booleans by name.
func (d Doc) Flag(name string) bool {
	return d.get("FDSN.Flags." + name).Bool()
}

// ClockModel reads /FDSN/Clock/Model.
func (d Doc) ClockModel() (model string, ok bool) {
	r := d.get("FDSN.Clock.Model")
	if !r.Exists() {
		return "", false
	}
	return r.String(), true
}

// TimeException is one entry of /FDSN/Time/Exception[].
type TimeException struct {
	USecTime        int64
	VCOCorrection   float64
	HasVCO          bool
	Reception       byte
	Quality         uint8
	ClockExceptions uint8
	ClockModel      string
}

// TimeExceptions reads /FDSN/Time/Exception[], one B500 per entry.
func (d Doc) TimeExceptions() []TimeException {
	r := d.get("FDSN.Time.Exception")
	if !r.IsArray() {
		return nil
	}
	var out []TimeException
	r.ForEach(func(_, entry gjson.Result) bool {
		te := TimeException{}
		if v := entry.Get("USecTime"); v.Exists() {
			te.USecTime = v.Int()
		}
		if v := entry.Get("VCOCorrection"); v.Exists() {
			te.VCOCorrection = v.Float()
			te.HasVCO = true
		}
		if v := entry.Get("Quality"); v.Exists() {
			te.Quality = uint8(v.Uint())
		}
		if v := entry.Get("ClockModel"); v.Exists() {
			te.ClockModel = v.String()
		}
		out = append(out, te)
		return true
	})
	return out
}

// Detection is one entry of /FDSN/Event/Detection[].
type Detection struct {
	Type               string
	IsMurdock          bool
	SignalAmplitude    float64
	SignalPeriod       float64
	BackgroundEstimate float64
	Wave               string
	Onset              string
}

// Detections reads /FDSN/Event/Detection[].
func (d Doc) Detections() []Detection {
	r := d.get("FDSN.Event.Detection")
	if !r.IsArray() {
		return nil
	}
	var out []Detection
	r.ForEach(func(_, entry gjson.Result) bool {
		det := Detection{}
		if v := entry.Get("Type"); v.Exists() {
			det.Type = v.String()
		}
		det.IsMurdock = len(det.Type) >= len("MURDOCK") && equalFoldPrefix(det.Type, "MURDOCK")
		if v := entry.Get("SignalAmplitude"); v.Exists() {
			det.SignalAmplitude = v.Float()
		}
		if v := entry.Get("SignalPeriod"); v.Exists() {
			det.SignalPeriod = v.Float()
		}
		if v := entry.Get("BackgroundEstimate"); v.Exists() {
			det.BackgroundEstimate = v.Float()
		}
		if v := entry.Get("Wave"); v.Exists() {
			det.Wave = v.String()
		}
		if v := entry.Get("Onset"); v.Exists() {
			det.Onset = v.String()
		}
		out = append(out, det)
		return true
	})
	return out
}

func equalFoldPrefix(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'a' <= a && a <= 'z' {
			a -= 'a' - 'A'
		}
		if 'a' <= b && b <= 'z' {
			b -= 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// Calibration is one entry of /FDSN/Calibration/Sequence[].
type Calibration struct {
	Type           string // STEP, SINE, PSEUDORANDOM, GENERIC
	HasType        bool
	HasEndTime     bool
	BeginTime      int64
	EndTime        int64
	Duration       float64 // seconds
	HasDuration    bool
	StepAmplitude  float64
	StepInterval   float64
	AmplitudeRange string
	Amplitude      float64
	Frequency      float64
	PeakToPeak     bool
}

// Calibrations reads /FDSN/Calibration/Sequence[].
func (d Doc) Calibrations() ([]Calibration, error) {
	r := d.get("FDSN.Calibration.Sequence")
	if !r.Exists() {
		return nil, nil
	}
	if !r.IsArray() {
		return nil, ErrMalformed
	}
	var out []Calibration
	var parseErr error
	r.ForEach(func(_, entry gjson.Result) bool {
		c := Calibration{}
		if v := entry.Get("Type"); v.Exists() {
			c.Type = v.String()
			c.HasType = true
		}
		if v := entry.Get("EndTime"); v.Exists() {
			c.EndTime = v.Int()
			c.HasEndTime = true
		}
		if !c.HasType && !c.HasEndTime {
			parseErr = ErrMalformed
			return false
		}
		if v := entry.Get("BeginTime"); v.Exists() {
			c.BeginTime = v.Int()
		}
		if v := entry.Get("Duration"); v.Exists() {
			c.Duration = v.Float()
			c.HasDuration = true
		}
		if v := entry.Get("StepAmplitude"); v.Exists() {
			c.StepAmplitude = v.Float()
		}
		if v := entry.Get("StepInterval"); v.Exists() {
			c.StepInterval = v.Float()
		}
		if v := entry.Get("AmplitudeRange"); v.Exists() {
			c.AmplitudeRange = v.String()
		}
		if v := entry.Get("Amplitude"); v.Exists() {
			c.Amplitude = v.Float()
		}
		if v := entry.Get("Frequency"); v.Exists() {
			c.Frequency = v.Float()
		}
		if v := entry.Get("PeakToPeak"); v.Exists() {
			c.PeakToPeak = v.Bool()
		}
		out = append(out, c)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}
