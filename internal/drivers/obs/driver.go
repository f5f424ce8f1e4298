package obs

import (
	"encoding/json"

	"github.com/mousetraptech/productionhub/internal/driverbase"
	"github.com/mousetraptech/productionhub/internal/driverreg"
	"github.com/mousetraptech/productionhub/internal/logging"
	"github.com/mousetraptech/productionhub/internal/oscproto"
)

var driverLog = logging.New("driver.obs")

func init() {
	driverLog.Debugf("REVISION: %s loaded", revision)
}

// Driver binds the hub's OSC address space to OBS Studio over
// obs-websocket v5, embedding driverbase.Base for connection lifecycle
// and replay handling.
type Driver struct {
	*driverbase.Base

	url      string
	password string

	client *Client
}

// New constructs an OBS driver. url is the obs-websocket endpoint (e.g.
// "ws://localhost:4455"); password may be empty if authentication is
// disabled on the target instance.
func New(name, prefix, url, password string) *Driver {
	d := &Driver{url: url, password: password}
	d.Base = driverbase.New(name, prefix, driverreg.TransportWebSocket, 64)
	d.Base.Dial = d.dial
	return d
}

func (d *Driver) dial() error {
	client := NewClient(d.password, d.onEvent, d.onClose)
	if err := client.Dial(d.url); err != nil {
		return err
	}
	d.client = client
	d.Base.TransitionConnected(d.replaySend)
	return nil
}

func (d *Driver) onClose() {
	d.Base.TransitionDisconnected()
}

func (d *Driver) replaySend(address string, args []oscproto.Arg) {
	d.HandleOSC(address, args)
}

func (d *Driver) onEvent(eventType string, data json.RawMessage) {
	address, arg, ok := translateEvent(eventType, data)
	if !ok {
		return
	}
	d.EmitFeedback(address, []oscproto.Arg{arg})
}

// HandleOSC dispatches one address (already stripped of the driver's
// prefix) to the matching obs-websocket request. Sends are queued in the
// replay buffer while disconnected rather than dropped.
func (d *Driver) HandleOSC(address string, args []oscproto.Arg) {
	if !d.Base.IsConnected() {
		d.Base.EnqueueReplay(address, args)
		return
	}
	if err := d.dispatchOSC(address, args); err != nil {
		driverLog.Warnf("obs: %v", err)
	}
}

// HandleFadeTick is a no-op: OBS exposes no continuously-variable
// parameter the fade engine could drive.
func (d *Driver) HandleFadeTick(string, float64) {}

// HandleFeedback never claims unprefixed addresses; all OBS feedback
// arrives over its own websocket event stream.
func (d *Driver) HandleFeedback(string, []oscproto.Arg) bool { return false }
