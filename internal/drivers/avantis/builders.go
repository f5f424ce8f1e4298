package avantis

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// NRPN parameter IDs carried in the NRPN LSB (controller 98) byte. The
// console only exposes fader level and pan over NRPN; everything else
// (mute, scene) rides Note-On/Program Change instead.
const (
	nrpnParamFader byte = 0x17
	nrpnParamPan   byte = 0x18
)

// quantize7 maps a 0..1 normalized value onto the 7-bit MIDI data range,
// clamping out-of-range input instead of wrapping it.
func quantize7(v float64) byte {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return byte(v*127 + 0.5)
}

// quantizeBipolar7 maps a -1..1 normalized value (pan, balance) onto the
// 7-bit range centered on 0x40.
func quantizeBipolar7(v float64) byte {
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	return byte(64 + v*63 + 0.5)
}

// BuildNRPNFader returns the 9-byte NRPN sequence that sets one strip's
// fader level (spec.md §4.4): NRPN MSB (stripHex), NRPN LSB (fader
// parameter), then data entry MSB carrying the quantized level.
func BuildNRPNFader(midiChannel int, stripHex byte, level float64) ([]byte, error) {
	ch, err := channelByte(midiChannel)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 9)
	out = append(out, []byte(midi.ControlChange(ch, 99, stripHex))...)
	out = append(out, []byte(midi.ControlChange(ch, 98, nrpnParamFader))...)
	out = append(out, []byte(midi.ControlChange(ch, 6, quantize7(level)))...)
	return out, nil
}

// BuildNRPNPan returns the 9-byte NRPN sequence that sets one strip's pan
// position, identical in shape to BuildNRPNFader but addressing the pan
// parameter and quantizing bipolar rather than unipolar.
func BuildNRPNPan(midiChannel int, stripHex byte, pan float64) ([]byte, error) {
	ch, err := channelByte(midiChannel)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 9)
	out = append(out, []byte(midi.ControlChange(ch, 99, stripHex))...)
	out = append(out, []byte(midi.ControlChange(ch, 98, nrpnParamPan))...)
	out = append(out, []byte(midi.ControlChange(ch, 6, quantizeBipolar7(pan)))...)
	return out, nil
}

// BuildMute returns the 6-byte mute message pair: a Note-On carrying the
// mute state in its velocity (>= 0x40 muted, per the console's own
// inbound convention) immediately followed by a zero-velocity Note-On
// release, since the console treats mute strips as momentary buttons.
func BuildMute(midiChannel int, stripHex byte, muted bool) ([]byte, error) {
	ch, err := channelByte(midiChannel)
	if err != nil {
		return nil, err
	}
	vel := byte(0x3F)
	if muted {
		vel = 0x7F
	}
	out := make([]byte, 0, 6)
	out = append(out, []byte(midi.NoteOn(ch, stripHex, vel))...)
	out = append(out, []byte(midi.NoteOn(ch, stripHex, 0x00))...)
	return out, nil
}

// BuildSceneRecall returns the scene-recall byte sequence: scenes 0-127
// are a bare 2-byte Program Change; scenes beyond that split across a
// CC0 bank-select message and the Program Change (spec.md §4.4 scene
// split: scene 200 -> bank 1, program 72). The console's observed scene
// ceiling is 499; scenes outside 0-499 are refused without transmitting
// (spec.md §8 scenario 3).
func BuildSceneRecall(midiChannel int, scene int) ([]byte, error) {
	ch, err := channelByte(midiChannel)
	if err != nil {
		return nil, err
	}
	if scene < 0 || scene >= 500 {
		return nil, fmt.Errorf("avantis: scene %d out of range 0-499", scene)
	}
	bank := byte(scene / 128)
	program := byte(scene % 128)
	if bank == 0 {
		return []byte(midi.ProgramChange(ch, program)), nil
	}
	out := make([]byte, 0, 5)
	out = append(out, []byte(midi.ControlChange(ch, 0, bank))...)
	out = append(out, []byte(midi.ProgramChange(ch, program))...)
	return out, nil
}

func channelByte(midiChannel int) (uint8, error) {
	if midiChannel < 0 || midiChannel > 15 {
		return 0, fmt.Errorf("avantis: midi channel %d out of range 0-15", midiChannel)
	}
	return uint8(midiChannel), nil
}
