// Package visca binds the hub's OSC address space to a PTZ camera over
// the VISCA command protocol, either raw TCP or VISCA-over-IP UDP
// (spec.md §4.6).
package visca

import (
	"fmt"
	"math"
)

// REVISION: visca-v1-dual-transport
const revision = "visca-v1-dual-transport"

const terminator = 0xFF

// cameraByte returns the VISCA camera-address byte (0x80 + address) for
// the "cam" position in every command below.
func cameraByte(address int) byte {
	return byte(0x80 + address)
}

// Home returns "cam 01 06 04 FF".
func Home(cameraAddress int) []byte {
	return []byte{cameraByte(cameraAddress), 0x01, 0x06, 0x04, terminator}
}

// PresetRecall returns "cam 01 04 3F 02 N FF"; n must be 0..127.
func PresetRecall(cameraAddress, n int) ([]byte, error) {
	if n < 0 || n > 127 {
		return nil, fmt.Errorf("visca: preset %d out of range 0-127", n)
	}
	return []byte{cameraByte(cameraAddress), 0x01, 0x04, 0x3F, 0x02, byte(n), terminator}, nil
}

// PresetStore returns "cam 01 04 3F 01 N FF"; n must be 0..127.
func PresetStore(cameraAddress, n int) ([]byte, error) {
	if n < 0 || n > 127 {
		return nil, fmt.Errorf("visca: preset %d out of range 0-127", n)
	}
	return []byte{cameraByte(cameraAddress), 0x01, 0x04, 0x3F, 0x01, byte(n), terminator}, nil
}

// PowerOn / PowerOff return "cam 01 04 00 02 FF" / "cam 01 04 00 03 FF".
func PowerOn(cameraAddress int) []byte {
	return []byte{cameraByte(cameraAddress), 0x01, 0x04, 0x00, 0x02, terminator}
}

func PowerOff(cameraAddress int) []byte {
	return []byte{cameraByte(cameraAddress), 0x01, 0x04, 0x00, 0x03, terminator}
}

// FocusAuto / FocusManual return "cam 01 04 38 02 FF" / "cam 01 04 38 03 FF".
func FocusAuto(cameraAddress int) []byte {
	return []byte{cameraByte(cameraAddress), 0x01, 0x04, 0x38, 0x02, terminator}
}

func FocusManual(cameraAddress int) []byte {
	return []byte{cameraByte(cameraAddress), 0x01, 0x04, 0x38, 0x03, terminator}
}

// PanTiltStop returns "cam 01 06 01 01 01 03 03 FF".
func PanTiltStop(cameraAddress int) []byte {
	return []byte{cameraByte(cameraAddress), 0x01, 0x06, 0x01, 0x01, 0x01, 0x03, 0x03, terminator}
}

// panDirByte and tiltDirByte map signed speed registers onto VISCA's
// direction/stop byte pair (spec.md §4.6): pan negative is left, positive
// is right; tilt positive is up, negative is down; zero is stop on
// either axis.
func panDirByte(pan float64) byte {
	switch {
	case pan < 0:
		return 0x01 // left
	case pan > 0:
		return 0x02 // right
	default:
		return 0x03 // stop
	}
}

func tiltDirByte(tilt float64) byte {
	switch {
	case tilt > 0:
		return 0x01 // up
	case tilt < 0:
		return 0x02 // down
	default:
		return 0x03 // stop
	}
}

func clampSpeedByte(v float64, max byte) byte {
	v = math.Abs(v)
	n := int(math.Round(v * float64(max)))
	if n < 1 {
		n = 1
	}
	if n > int(max) {
		n = int(max)
	}
	return byte(n)
}

// PanTiltSpeed returns "cam 01 06 01 vv ww panDir tiltDir FF" for the
// combined pan and tilt speed registers (spec.md §4.6); pan and tilt are
// each in [-1, 1], 0 meaning "not moving on that axis".
func PanTiltSpeed(cameraAddress int, pan, tilt float64) []byte {
	vv := clampSpeedByte(pan, 0x18)
	ww := clampSpeedByte(tilt, 0x14)
	return []byte{
		cameraByte(cameraAddress), 0x01, 0x06, 0x01,
		vv, ww,
		panDirByte(pan), tiltDirByte(tilt),
		terminator,
	}
}

// ZoomSpeed returns the zoom-drive command for s in [-1, 1]: stop at 0,
// tele (zoom in) for s > 0, wide (zoom out) for s < 0.
func ZoomSpeed(cameraAddress int, s float64) []byte {
	if s == 0 {
		return []byte{cameraByte(cameraAddress), 0x01, 0x04, 0x07, 0x00, terminator}
	}
	p := int(math.Round(math.Abs(s) * 7))
	if p > 7 {
		p = 7
	}
	var b byte
	if s > 0 {
		b = 0x20 | byte(p)
	} else {
		b = 0x30 | byte(p)
	}
	return []byte{cameraByte(cameraAddress), 0x01, 0x04, 0x07, b, terminator}
}

// ZoomDirect returns "cam 01 04 47 p q r s FF" where pqrs are the four
// nibbles of round(v * 0x4000); v must be in [0, 1].
func ZoomDirect(cameraAddress int, v float64) ([]byte, error) {
	if v < 0 || v > 1 {
		return nil, fmt.Errorf("visca: zoom value %v out of range 0-1", v)
	}
	raw := uint16(math.Round(v * 0x4000))
	return []byte{
		cameraByte(cameraAddress), 0x01, 0x04, 0x47,
		byte((raw >> 12) & 0x0F),
		byte((raw >> 8) & 0x0F),
		byte((raw >> 4) & 0x0F),
		byte(raw & 0x0F),
		terminator,
	}, nil
}
