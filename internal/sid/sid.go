// Package sid parses FDSN source identifiers of the form
// "FDSN:NET_STA_LOC_B_S_SS" and derives the v2 fixed-width NSLC fields.
package sid

import (
	"fmt"
	"strings"
)

// ErrMalformed is returned when sid does not match the expected grammar.
var ErrMalformed = fmt.Errorf("sid: malformed source identifier")

const (
	maxNetLen = 2
	maxStaLen = 5
	maxLocLen = 2
)

// Parsed holds the decomposed fields of a source identifier.
type Parsed struct {
	Network       string // <=2 chars
	Station       string // <=5 chars
	Location      string // <=2 chars
	Band          string // single char
	Source        string // single char
	Subsource     string // two chars
}

// Channel returns the 3-character v2 channel code (Band+Source+Subsource
// collapsed to one char each, e.g. "BHZ").
func (p Parsed) Channel() string {
	sub := p.Subsource
	if len(sub) > 1 {
		sub = sub[:1]
	}
	return p.Band + p.Source + sub
}

// Parse decodes sid of the form "FDSN:NET_STA_LOC_B_S_SS". Location may be
// empty (two consecutive underscores). sid must be <=255 bytes.
func Parse(sidStr string) (Parsed, error) {
	if len(sidStr) > 255 {
		return Parsed{}, ErrMalformed
	}
	const prefix = "FDSN:"
	if !strings.HasPrefix(sidStr, prefix) {
		return Parsed{}, ErrMalformed
	}
	rest := sidStr[len(prefix):]
	parts := strings.Split(rest, "_")
	if len(parts) != 6 {
		return Parsed{}, ErrMalformed
	}
	net, sta, loc, band, src, subsrc := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]

	if len(net) > maxNetLen || len(sta) == 0 || len(sta) > maxStaLen || len(loc) > maxLocLen {
		return Parsed{}, ErrMalformed
	}
	if len(band) != 1 || len(src) != 1 || len(subsrc) == 0 || len(subsrc) > 2 {
		return Parsed{}, ErrMalformed
	}

	return Parsed{
		Network:   net,
		Station:   sta,
		Location:  loc,
		Band:      band,
		Source:    src,
		Subsource: subsrc,
	}, nil
}

// Format reassembles the canonical "FDSN:NET_STA_LOC_B_S_SS" string.
func Format(p Parsed) string {
	return fmt.Sprintf("FDSN:%s_%s_%s_%s_%s_%s", p.Network, p.Station, p.Location, p.Band, p.Source, p.Subsource)
}
