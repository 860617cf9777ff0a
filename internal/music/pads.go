package music

import "strings"

// Pad names a drum voice that can be triggered independently.
type Pad string

const (
	PadKick      Pad = "KICK"
	PadSnare     Pad = "SNARE"
	PadClap      Pad = "CLAP"
	PadHatClosed Pad = "HAT_CLOSED"
	PadHatOpen   Pad = "HAT_OPEN"
	PadTomLow    Pad = "TOM_LOW"
	PadTomHigh   Pad = "TOM_HIGH"
	PadRim       Pad = "RIM"
	PadCrash     Pad = "CRASH"
	PadRide      Pad = "RIDE"
	PadPerc      Pad = "PERC"
	PadShaker    Pad = "SHAKER"
)

// Pads lists every valid pad in kit order.
var Pads = []Pad{
	PadKick, PadSnare, PadClap, PadHatClosed, PadHatOpen, PadTomLow,
	PadTomHigh, PadRim, PadCrash, PadRide, PadPerc, PadShaker,
}

// General MIDI percussion notes (channel 10).
var gmNotes = map[Pad]uint8{
	PadKick:      36,
	PadSnare:     38,
	PadClap:      39,
	PadHatClosed: 42,
	PadHatOpen:   46,
	PadTomLow:    45,
	PadTomHigh:   50,
	PadRim:       37,
	PadCrash:     49,
	PadRide:      51,
	PadPerc:      56,
	PadShaker:    70,
}

// Common spellings produced by people and language models.
var padAliases = map[string]Pad{
	"BD":          PadKick,
	"BASS":        PadKick,
	"BASSDRUM":    PadKick,
	"SD":          PadSnare,
	"CP":          PadClap,
	"HH":          PadHatClosed,
	"HIHAT":       PadHatClosed,
	"HAT":         PadHatClosed,
	"CH":          PadHatClosed,
	"CLOSED_HAT":  PadHatClosed,
	"OH":          PadHatOpen,
	"OPEN_HAT":    PadHatOpen,
	"OPENHAT":     PadHatOpen,
	"TOM":         PadTomLow,
	"LT":          PadTomLow,
	"HT":          PadTomHigh,
	"RIMSHOT":     PadRim,
	"CY":          PadCrash,
	"CYMBAL":      PadCrash,
	"COWBELL":     PadPerc,
	"PERCUSSION":  PadPerc,
	"TAMBOURINE":  PadShaker,
}

// Valid reports whether p is one of the kit pads.
func (p Pad) Valid() bool {
	_, ok := gmNotes[p]
	return ok
}

// GMNote returns the General MIDI percussion note for the pad.
// Unknown pads map to the kick note.
func (p Pad) GMNote() uint8 {
	if n, ok := gmNotes[p]; ok {
		return n
	}
	return gmNotes[PadKick]
}

// ParsePad resolves a pad name case-insensitively, accepting common aliases.
func ParsePad(s string) (Pad, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if p := Pad(key); p.Valid() {
		return p, true
	}
	if p, ok := padAliases[key]; ok {
		return p, true
	}
	if p, ok := padAliases[strings.ReplaceAll(key, "_", "")]; ok {
		return p, true
	}
	return "", false
}

// NearestPad is ParsePad with a fallback: names that share a prefix with a
// kit pad resolve to it, anything else becomes KICK.
func NearestPad(s string) Pad {
	if p, ok := ParsePad(s); ok {
		return p
	}
	key := strings.ToUpper(strings.TrimSpace(s))
	if len(key) >= 2 {
		for _, p := range Pads {
			if strings.HasPrefix(string(p), key) || strings.HasPrefix(key, string(p)) {
				return p
			}
		}
	}
	return PadKick
}
