// Package avantis binds the hub's OSC address space to an Allen & Heath
// Avantis mixing console over a MIDI-over-TCP link: NRPN fader/pan
// messages, Note-On mutes, and Program Change scene recalls, plus the
// inverse decode for the console's own MIDI feedback stream.
package avantis

import "fmt"

// REVISION: avantis-v1-strip-table
const revision = "avantis-v1-strip-table"

// StripType names one of the console's fader-strip families. Each family
// occupies a contiguous stripHex range on one of five MIDI channel
// offsets from the driver's configured base channel (spec.md §4.4).
type StripType string

const (
	StripInput    StripType = "input"
	StripGroup    StripType = "group"
	StripMix      StripType = "mix"
	StripMatrix   StripType = "matrix"
	StripFXSend   StripType = "fxsend"
	StripFXReturn StripType = "fxreturn"
	StripMain     StripType = "main"
	StripDCA      StripType = "dca"
)

// channelOffset is added to the driver's configured MIDIBaseChannel to
// select the MIDI channel carrying a strip family's NRPN/CC traffic.
func channelOffset(t StripType) (int, error) {
	switch t {
	case StripInput:
		return 0, nil
	case StripGroup:
		return 1, nil
	case StripMix:
		return 2, nil
	case StripMatrix:
		return 3, nil
	case StripFXSend, StripFXReturn, StripMain, StripDCA:
		return 4, nil
	default:
		return 0, fmt.Errorf("avantis: unknown strip type %q", t)
	}
}

// ResolveStrip converts a (stripType, 1-indexed number) pair into the MIDI
// channel and stripHex byte the console expects (spec.md §4.4). number is
// ignored for StripMain, which always resolves to hex 0x30.
//
// Inputs 1-48 and 49-64 share the same +0 channel offset and a single
// contiguous hex range 0x00-0x3F; the console does not split the upper 16
// input channels onto a second MIDI channel the way some docs imply
// (resolved Open Question, SPEC_FULL.md §9).
func ResolveStrip(t StripType, number int, baseChannel int) (midiChannel int, stripHex byte, err error) {
	offset, err := channelOffset(t)
	if err != nil {
		return 0, 0, err
	}
	midiChannel = (baseChannel + offset) & 0x0F

	switch t {
	case StripInput:
		if number < 1 || number > 64 {
			return 0, 0, fmt.Errorf("avantis: input %d out of range 1-64", number)
		}
		return midiChannel, byte(number - 1), nil
	case StripGroup:
		if number < 1 || number > 16 {
			return 0, 0, fmt.Errorf("avantis: group %d out of range 1-16", number)
		}
		return midiChannel, byte(number - 1), nil
	case StripMix:
		if number < 1 || number > 12 {
			return 0, 0, fmt.Errorf("avantis: mix %d out of range 1-12", number)
		}
		return midiChannel, byte(number - 1), nil
	case StripMatrix:
		if number < 1 || number > 6 {
			return 0, 0, fmt.Errorf("avantis: matrix %d out of range 1-6", number)
		}
		return midiChannel, byte(number - 1), nil
	case StripFXSend:
		if number < 1 || number > 4 {
			return 0, 0, fmt.Errorf("avantis: fxsend %d out of range 1-4", number)
		}
		return midiChannel, byte(number - 1), nil
	case StripFXReturn:
		if number < 1 || number > 8 {
			return 0, 0, fmt.Errorf("avantis: fxreturn %d out of range 1-8", number)
		}
		return midiChannel, byte(0x20 + (number - 1)), nil
	case StripMain:
		return midiChannel, 0x30, nil
	case StripDCA:
		if number < 1 || number > 16 {
			return 0, 0, fmt.Errorf("avantis: dca %d out of range 1-16", number)
		}
		return midiChannel, byte(0x36 + (number - 1)), nil
	default:
		return 0, 0, fmt.Errorf("avantis: unknown strip type %q", t)
	}
}

// ReverseResolveStrip is the inverse of ResolveStrip, used to translate an
// inbound NRPN/Note status back into an OSC feedback address (spec.md
// §4.4 inbound path). ok is false for a channel/hex combination that
// falls in one of the table's unused holes.
func ReverseResolveStrip(midiChannel int, stripHex byte, baseChannel int) (t StripType, number int, ok bool) {
	offset := ((midiChannel - baseChannel) % 16 + 16) % 16

	switch offset {
	case 0:
		if stripHex <= 0x3F {
			return StripInput, int(stripHex) + 1, true
		}
	case 1:
		if stripHex <= 0x0F {
			return StripGroup, int(stripHex) + 1, true
		}
	case 2:
		if stripHex <= 0x0B {
			return StripMix, int(stripHex) + 1, true
		}
	case 3:
		if stripHex <= 0x05 {
			return StripMatrix, int(stripHex) + 1, true
		}
	case 4:
		switch {
		case stripHex <= 0x03:
			return StripFXSend, int(stripHex) + 1, true
		case stripHex >= 0x20 && stripHex <= 0x27:
			return StripFXReturn, int(stripHex-0x20) + 1, true
		case stripHex == 0x30:
			return StripMain, 1, true
		case stripHex >= 0x36 && stripHex <= 0x45:
			return StripDCA, int(stripHex-0x36) + 1, true
		}
	}
	return "", 0, false
}
