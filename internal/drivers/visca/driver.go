package visca

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mousetraptech/productionhub/internal/driverbase"
	"github.com/mousetraptech/productionhub/internal/driverreg"
	"github.com/mousetraptech/productionhub/internal/logging"
	"github.com/mousetraptech/productionhub/internal/oscproto"
)

var driverLog = logging.New("driver.visca")

func init() {
	driverLog.Debugf("REVISION: %s loaded", revision)
}

// Driver binds the hub's OSC address space to a PTZ camera over raw TCP
// or VISCA-over-IP UDP, embedding driverbase.Base for connection
// lifecycle and replay handling. The camera never sends unsolicited
// traffic, so the hub must never enable the heartbeat watchdog for this
// driver (spec.md §4.10/SPEC_FULL.md §9).
type Driver struct {
	*driverbase.Base

	host          string
	cameraAddress int
	useUDP        bool

	mu       sync.Mutex
	conn     net.Conn
	sequence uint32
	panSpeed float64
	tiltSpeed float64
}

// New constructs a VISCA driver. transport is "tcp" or "udp"
// (VISCA-over-IP); anything else falls back to tcp.
func New(name, prefix, host string, cameraAddress int, transport string) *Driver {
	d := &Driver{
		host:          host,
		cameraAddress: cameraAddress,
		useUDP:        strings.EqualFold(transport, "udp"),
	}
	t := driverreg.TransportTCP
	if d.useUDP {
		t = driverreg.TransportUDP
	}
	d.Base = driverbase.New(name, prefix, t, 64)
	d.Base.Dial = d.dial
	return d
}

func (d *Driver) dial() error {
	network := "tcp"
	if d.useUDP {
		network = "udp"
	}
	conn, err := net.DialTimeout(network, d.host, 5*time.Second)
	if err != nil {
		return fmt.Errorf("visca: dial %s %s: %w", network, d.host, err)
	}
	d.mu.Lock()
	d.conn = conn
	d.sequence = 0
	d.mu.Unlock()

	d.Base.TransitionConnected(d.replaySend)
	if !d.useUDP {
		go d.readLoop(conn)
	}
	return nil
}

// readLoop exists only for the TCP transport, to notice a dropped
// connection; VISCA replies (ACK/completion) are not otherwise parsed.
func (d *Driver) readLoop(conn net.Conn) {
	buf := make([]byte, 64)
	for {
		_, err := conn.Read(buf)
		if err != nil {
			d.mu.Lock()
			if d.conn == conn {
				d.conn = nil
			}
			d.mu.Unlock()
			d.Base.TransitionDisconnected()
			return
		}
		d.Base.NoteInboundData()
	}
}

func (d *Driver) replaySend(address string, args []oscproto.Arg) {
	d.HandleOSC(address, args)
}

// HandleOSC dispatches one of the command addresses spec.md §4.6 defines.
// Address matching is case-insensitive; trailing slashes are ignored.
func (d *Driver) HandleOSC(address string, args []oscproto.Arg) {
	address = strings.ToLower(strings.TrimSuffix(address, "/"))
	segs := strings.Split(address, "/")

	switch {
	case address == "home":
		d.write(Home(d.cameraAddress))

	case len(segs) == 3 && segs[0] == "preset" && segs[1] == "recall":
		n, err := strconv.Atoi(segs[2])
		if err != nil {
			driverLog.Warnf("visca: bad preset number %q", segs[2])
			return
		}
		bytes, err := PresetRecall(d.cameraAddress, n)
		if err != nil {
			driverLog.Warnf("visca: %v", err)
			return
		}
		d.write(bytes)

	case len(segs) == 3 && segs[0] == "preset" && segs[1] == "store":
		n, err := strconv.Atoi(segs[2])
		if err != nil {
			driverLog.Warnf("visca: bad preset number %q", segs[2])
			return
		}
		bytes, err := PresetStore(d.cameraAddress, n)
		if err != nil {
			driverLog.Warnf("visca: %v", err)
			return
		}
		d.write(bytes)

	case address == "power/on":
		d.write(PowerOn(d.cameraAddress))
	case address == "power/off":
		d.write(PowerOff(d.cameraAddress))

	case address == "focus/auto":
		d.write(FocusAuto(d.cameraAddress))
	case address == "focus/manual":
		d.write(FocusManual(d.cameraAddress))

	case address == "pantilt/stop":
		d.setSpeeds(0, 0)
		d.write(PanTiltStop(d.cameraAddress))

	case address == "pantilt/speed":
		pan, panOK := argFloatAt(args, 0)
		tilt, tiltOK := argFloatAt(args, 1)
		if !panOK || !tiltOK {
			driverLog.Warnf("visca: pantilt/speed requires pan and tilt arguments")
			return
		}
		d.setSpeeds(pan, tilt)
		d.write(PanTiltSpeed(d.cameraAddress, pan, tilt))

	case address == "pan/speed":
		pan, ok := argFloatAt(args, 0)
		if !ok {
			return
		}
		_, tilt := d.setSpeeds(pan, panNoChange)
		d.write(PanTiltSpeed(d.cameraAddress, pan, tilt))

	case address == "tilt/speed":
		tilt, ok := argFloatAt(args, 0)
		if !ok {
			return
		}
		pan, _ := d.setSpeeds(panNoChange, tilt)
		d.write(PanTiltSpeed(d.cameraAddress, pan, tilt))

	case address == "zoom/speed":
		s, ok := argFloatAt(args, 0)
		if !ok {
			return
		}
		d.write(ZoomSpeed(d.cameraAddress, s))

	case address == "zoom/direct":
		v, ok := argFloatAt(args, 0)
		if !ok {
			return
		}
		bytes, err := ZoomDirect(d.cameraAddress, v)
		if err != nil {
			driverLog.Warnf("visca: %v", err)
			return
		}
		d.write(bytes)

	default:
		driverLog.Warnf("visca: unrecognized address %q", address)
	}
}

// panNoChange is a sentinel telling setSpeeds to leave that axis alone.
const panNoChange = -1e18

// setSpeeds updates whichever of the per-driver pan/tilt speed registers
// is not panNoChange and returns the resulting (pan, tilt) pair, so that
// individually-set axes (spec.md §4.6 "/pan/speed", "/tilt/speed") are
// accumulated into the next combined send.
func (d *Driver) setSpeeds(pan, tilt float64) (float64, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pan != panNoChange {
		d.panSpeed = pan
	}
	if tilt != panNoChange {
		d.tiltSpeed = tilt
	}
	return d.panSpeed, d.tiltSpeed
}

func argFloatAt(args []oscproto.Arg, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	return args[i].AsFloat64()
}

// HandleFadeTick is a no-op: the VISCA driver never registers a local
// key with the fade engine (spec.md §4.6).
func (d *Driver) HandleFadeTick(string, float64) {}

// HandleFeedback never claims unprefixed addresses; the camera never
// sends telemetry of its own accord.
func (d *Driver) HandleFeedback(string, []oscproto.Arg) bool { return false }

func (d *Driver) write(payload []byte) {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()

	if conn == nil {
		driverLog.Warnf("visca: not connected, dropping %d bytes", len(payload))
		return
	}

	out := payload
	if d.useUDP {
		out = d.wrapUDP(payload)
	}
	if _, err := conn.Write(out); err != nil {
		d.Base.TransitionError(fmt.Errorf("visca: write: %w", err))
	}
}

// wrapUDP prepends the 8-byte VISCA-over-IP header: payload-type 0x0100
// ("command"), big-endian uint16 payload length, big-endian uint32
// sequence number monotonically increasing from 0 per connection
// (spec.md §4.6).
func (d *Driver) wrapUDP(payload []byte) []byte {
	d.mu.Lock()
	seq := d.sequence
	d.sequence++
	d.mu.Unlock()

	header := make([]byte, 8)
	binary.BigEndian.PutUint16(header[0:2], 0x0100)
	binary.BigEndian.PutUint16(header[2:4], uint16(len(payload)))
	binary.BigEndian.PutUint32(header[4:8], seq)
	return append(header, payload...)
}
