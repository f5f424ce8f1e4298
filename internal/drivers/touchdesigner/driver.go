// Package touchdesigner relays the hub's OSC address space transparently
// to a TouchDesigner instance's OSC-in CHOP over UDP (spec.md §4.7).
package touchdesigner

import (
	"net"
	"sync"
	"time"

	"github.com/mousetraptech/productionhub/internal/driverbase"
	"github.com/mousetraptech/productionhub/internal/driverreg"
	"github.com/mousetraptech/productionhub/internal/logging"
	"github.com/mousetraptech/productionhub/internal/oscproto"
)

// REVISION: touchdesigner-v1-udp-relay
const revision = "touchdesigner-v1-udp-relay"

var driverLog = logging.New("driver.touchdesigner")

func init() {
	driverLog.Debugf("REVISION: %s loaded", revision)
}

// Driver forwards every OSC address it receives, unchanged, to a
// TouchDesigner OSC-in endpoint. There is no reply traffic of interest
// and no fade-capable parameter, so HandleFeedback and HandleFadeTick are
// both no-ops; the hub must never enable a heartbeat for this driver.
type Driver struct {
	*driverbase.Base

	host string

	mu   sync.Mutex
	conn net.Conn
}

// New constructs a TouchDesigner relay driver. host is "host:port" of the
// target OSC-in CHOP.
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

// HandleOSC re-encodes (address, args) as a typed OSC message and
// forwards it unchanged to TouchDesigner.
func (d *Driver) HandleOSC(address string, args []oscproto.Arg) {
	if !d.Base.IsConnected() {
		d.Base.EnqueueReplay(address, args)
		return
	}

	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		driverLog.Warnf("touchdesigner: not connected, dropping %q", address)
		return
	}

	data, err := oscproto.Encode(oscproto.New("/"+address, args...))
	if err != nil {
		driverLog.Warnf("touchdesigner: encoding %q: %v", address, err)
		return
	}
	if _, err := conn.Write(data); err != nil {
		d.Base.TransitionError(err)
	}
}

// HandleFadeTick is a no-op: this relay does not register fade keys.
func (d *Driver) HandleFadeTick(string, float64) {}

// HandleFeedback never claims unprefixed addresses; TouchDesigner has no
// telemetry convention this hub recognizes.
func (d *Driver) HandleFeedback(string, []oscproto.Arg) bool { return false }
