// Package chamsys relays the hub's OSC address space transparently to a
// ChamSys lighting console over UDP, and recognizes the console's own
// unprefixed playback telemetry for the feedback loop (spec.md §4.7).
package chamsys

import (
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

// REVISION: chamsys-v1-udp-relay
const revision = "chamsys-v1-udp-relay"

var driverLog = logging.New("driver.chamsys")

func init() {
	driverLog.Debugf("REVISION: %s loaded", revision)
}

// Driver forwards every OSC address it receives, unchanged, to the
// configured ChamSys console. UDP has no connection handshake to wait
// on, so the driver transitions to connected as soon as the local socket
// is open; there is no unsolicited traffic to key a heartbeat off of, so
// the hub must never enable one for this driver.
type Driver struct {
	*driverbase.Base

	host string

	mu   sync.Mutex
	conn net.Conn
}

// New constructs a ChamSys relay driver. host is "host:port" of the
// console's OSC input.
func New(name, prefix, host string) *Driver {
	d := &Driver{host: host}
	d.Base = driverbase.New(name, prefix, driverreg.TransportUDP, 64)
	d.Base.Dial = d.dial
	return d
}

func (d *Driver) dial() error {
	conn, err := net.DialTimeout("udp", d.host, 5*time.Second)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
	d.Base.TransitionConnected(d.replaySend)
	return nil
}

func (d *Driver) replaySend(address string, args []oscproto.Arg) {
	d.HandleOSC(address, args)
}

// HandleOSC re-encodes (address, args) as a typed OSC message addressed
// with a leading slash and forwards it unchanged to the console.
func (d *Driver) HandleOSC(address string, args []oscproto.Arg) {
	if !d.Base.IsConnected() {
		d.Base.EnqueueReplay(address, args)
		return
	}

	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		driverLog.Warnf("chamsys: not connected, dropping %q", address)
		return
	}

	data, err := oscproto.Encode(oscproto.New("/"+address, args...))
	if err != nil {
		driverLog.Warnf("chamsys: encoding %q: %v", address, err)
		return
	}
	if _, err := conn.Write(data); err != nil {
		d.Base.TransitionError(err)
	}
}

// HandleFadeTick is a no-op: ChamSys cue/playback levels are driven by
// console-side cross-fades, not this hub's fade engine.
func (d *Driver) HandleFadeTick(string, float64) {}

// HandleFeedback recognizes the console's own unprefixed playback
// telemetry (spec.md §4.7): "/pb/{n}", "/pb/{n}/isactive", "/pb/{n}/cue",
// and "/master". Anything else is declined so the dispatcher can offer it
// to the next driver in registration order.
func (d *Driver) HandleFeedback(rawAddress string, args []oscproto.Arg) bool {
	addr := strings.TrimPrefix(rawAddress, "/")
	if addr == "master" {
		d.EmitFeedback("master", args)
		return true
	}

	segs := strings.Split(addr, "/")
	if len(segs) < 2 || segs[0] != "pb" {
		return false
	}
	if _, err := strconv.Atoi(segs[1]); err != nil {
		return false
	}
	switch len(segs) {
	case 2:
		d.EmitFeedback(addr, args)
		return true
	case 3:
		if segs[2] == "isactive" || segs[2] == "cue" {
			d.EmitFeedback(addr, args)
			return true
		}
	}
	return false
}
