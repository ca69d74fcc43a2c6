package v2header

import (
	"encoding/binary"
	"math"

	"github.com/fdsn-go/mseedpack/internal/xheader"
)

// chainBuilder assembles the singly-linked blockette chain that follows
// the 48-byte fixed header. Each blockette is type(2) + next-offset(2)
// + body, with next-offset absolute from the start of the record
// (0 terminates the chain); the previous blockette's next-offset field
// is back-patched once the following blockette's position is known.
type chainBuilder struct {
	buf          []byte
	count        int
	lastNextOff  int // absolute offset, within buf+FixedLen space, of the previous blockette's next-offset field; -1 if none yet
	b1001UsecOff int // absolute header offset of B1001's usec field, or -1
}

func newChainBuilder(reclen int) *chainBuilder {
	return &chainBuilder{buf: make([]byte, 0, 64), lastNextOff: -1, b1001UsecOff: -1}
}

func (c *chainBuilder) len() int { return len(c.buf) }
func (c *chainBuilder) bytes() []byte { return c.buf }

func (c *chainBuilder) b1001Offset() (int, bool) {
	if c.b1001UsecOff < 0 {
		return 0, false
	}
	return c.b1001UsecOff, true
}

// start reserves the type+next header of a new blockette, linking it
// from the previous one, and returns the absolute offset (from record
// start) of this blockette's first byte.
func (c *chainBuilder) start(blkType uint16) int {
	absOffset := FixedLen + len(c.buf)
	if c.lastNextOff >= 0 {
		binary.BigEndian.PutUint16(c.buf[c.lastNextOff-FixedLen:], uint16(absOffset))
	}
	c.buf = append(c.buf, 0, 0, 0, 0)
	binary.BigEndian.PutUint16(c.buf[len(c.buf)-4:], blkType)
	c.lastNextOff = absOffset + 2
	c.count++
	return absOffset
}

func (c *chainBuilder) appendBody(body []byte) {
	c.buf = append(c.buf, body...)
}

func (c *chainBuilder) addB1000(encoding byte, reclenExp int) {
	c.start(1000)
	c.appendBody([]byte{encoding, 1, byte(reclenExp), 0})
}

func (c *chainBuilder) addB1001(timingQuality uint8) {
	start := c.start(1001)
	c.appendBody([]byte{timingQuality, 0, 0, 0})
	c.b1001UsecOff = start + 5
}

func (c *chainBuilder) addB100(rate float32) {
	c.start(100)
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, math.Float32bits(rate))
	body = append(body, 0, 0, 0, 0) // flags(1) + reserved(3)
	c.appendBody(body)
}

func (c *chainBuilder) addB500(te xheader.TimeException) {
	c.start(500)
	body := make([]byte, 0, 16)
	var vco [4]byte
	if te.HasVCO {
		binary.BigEndian.PutUint32(vco[:], math.Float32bits(float32(te.VCOCorrection)))
	}
	body = append(body, vco[:]...)
	var btime [10]byte
	// usec_time is interpreted by the caller upstream of this package;
	// store as a raw 32-bit seconds-since-epoch-like field per B500.
	binary.BigEndian.PutUint32(btime[0:4], uint32(te.USecTime/1_000_000))
	body = append(body, btime[:4]...)
	body = append(body, 0) // reception quality
	body = append(body, te.Quality)
	body = append(body, te.ClockExceptions)
	clockModel := [32]byte{}
	copy(clockModel[:], te.ClockModel)
	body = append(body, clockModel[:]...)
	c.appendBody(body)
}

func (c *chainBuilder) addDetection(det xheader.Detection) {
	if det.IsMurdock {
		c.start(201)
		body := make([]byte, 0, 56)
		var amp, per, bg [4]byte
		binary.BigEndian.PutUint32(amp[:], math.Float32bits(float32(det.SignalAmplitude)))
		binary.BigEndian.PutUint32(per[:], math.Float32bits(float32(det.SignalPeriod)))
		binary.BigEndian.PutUint32(bg[:], math.Float32bits(float32(det.BackgroundEstimate)))
		body = append(body, amp[:]...)
		body = append(body, per[:]...)
		body = append(body, bg[:]...)
		body = append(body, 0) // background estimate flag / unused
		bg1 := [1]byte{}
		copy(bg1[:], det.Wave)
		body = append(body, bg1[:]...)
		body = append(body, 0, 0) // reserved
		onset := [16]byte{}
		copy(onset[:], det.Onset)
		body = append(body, onset[:]...)
		c.appendBody(body)
		return
	}
	c.start(200)
	body := make([]byte, 0, 16)
	var amp, per, bg [4]byte
	binary.BigEndian.PutUint32(amp[:], math.Float32bits(float32(det.SignalAmplitude)))
	binary.BigEndian.PutUint32(per[:], math.Float32bits(float32(det.SignalPeriod)))
	binary.BigEndian.PutUint32(bg[:], math.Float32bits(float32(det.BackgroundEstimate)))
	body = append(body, amp[:]...)
	body = append(body, per[:]...)
	body = append(body, bg[:]...)
	body = append(body, 0, 0, 0, 0) // flag + reserved
	c.appendBody(body)
}

func (c *chainBuilder) addCalibration(cal xheader.Calibration) error {
	var typeCode uint16
	recognized := true
	switch cal.Type {
	case "STEP":
		typeCode = 300
	case "SINE":
		typeCode = 310
	case "PSEUDORANDOM":
		typeCode = 320
	case "GENERIC":
		typeCode = 390
	default:
		recognized = false
	}
	if !recognized {
		if !cal.HasEndTime {
			return ErrMalformedCalibration
		}
		typeCode = 395
	}

	c.start(typeCode)
	body := make([]byte, 0, 16)
	durUnits := uint32(math.Round(cal.Duration * 10000))
	var durBytes [4]byte
	binary.BigEndian.PutUint32(durBytes[:], durUnits)

	switch typeCode {
	case 300:
		body = append(body, durBytes[:]...)
		var step, interval [4]byte
		binary.BigEndian.PutUint32(step[:], math.Float32bits(float32(cal.StepAmplitude)))
		binary.BigEndian.PutUint32(interval[:], math.Float32bits(float32(cal.StepInterval)))
		body = append(body, step[:]...)
		body = append(body, interval[:]...)
	case 310:
		body = append(body, durBytes[:]...)
		var ampB, freqB [4]byte
		binary.BigEndian.PutUint32(ampB[:], math.Float32bits(float32(cal.Amplitude)))
		binary.BigEndian.PutUint32(freqB[:], math.Float32bits(float32(cal.Frequency)))
		body = append(body, ampB[:]...)
		body = append(body, freqB[:]...)
		var flag byte
		if cal.PeakToPeak {
			flag = 1
		}
		body = append(body, flag)
	case 320:
		body = append(body, durBytes[:]...)
		var ampB [4]byte
		binary.BigEndian.PutUint32(ampB[:], math.Float32bits(float32(cal.Amplitude)))
		body = append(body, ampB[:]...)
	case 390:
		body = append(body, durBytes[:]...)
		var ampB [4]byte
		binary.BigEndian.PutUint32(ampB[:], math.Float32bits(float32(cal.Amplitude)))
		body = append(body, ampB[:]...)
	case 395:
		// B395 carries only the end-of-calibration time; no amplitude body.
	}
	c.appendBody(body)

	if cal.HasEndTime && typeCode != 395 {
		c.start(395)
	}
	return nil
}
