// Package qlab relays the hub's OSC address space to a QLab workspace over
// UDP, and layers QLab's own connect handshake, playhead/running-cue
// polling, and /reply parsing on top of the plain relay (spec.md §4.7).
package qlab

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/mousetraptech/productionhub/internal/driverbase"
	"github.com/mousetraptech/productionhub/internal/driverreg"
	"github.com/mousetraptech/productionhub/internal/logging"
	"github.com/mousetraptech/productionhub/internal/oscproto"
)

// REVISION: qlab-v1-relay-plus-polling
const revision = "qlab-v1-relay-plus-polling"

var driverLog = logging.New("driver.qlab")

func init() {
	driverLog.Debugf("REVISION: %s loaded", revision)
}

const pollInterval = time.Second

// Driver forwards every address transparently to a QLab workspace, and
// additionally runs the connect handshake and the playhead/running-cue
// poll loop QLab's OSC dictionary expects. QLab replies to whatever
// address sent the query, so a single connected UDP socket serves both
// directions; there is no need for the separate reply-listener port some
// QLab clients bind.
type Driver struct {
	*driverbase.Base

	host     string
	passcode string

	mu   sync.Mutex
	conn *net.UDPConn

	stopPoll chan struct{}
	wg       sync.WaitGroup

	lastPlayhead string
	lastRunning  string
}

// New constructs a QLab driver. host is "host:port" of the workspace's OSC
// input; passcode is sent with /connect when the workspace requires one
// (empty string omits the argument).
func New(name, prefix, host, passcode string) *Driver {
	d := &Driver{host: host, passcode: passcode}
	d.Base = driverbase.New(name, prefix, driverreg.TransportUDP, 64)
	d.Base.Dial = d.dial
	return d
}

func (d *Driver) dial() error {
	addr, err := net.ResolveUDPAddr("udp", d.host)
	if err != nil {
		return fmt.Errorf("qlab: resolve %s: %w", d.host, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("qlab: dial %s: %w", d.host, err)
	}

	d.mu.Lock()
	if d.conn != nil {
		d.conn.Close()
	}
	d.conn = conn
	d.stopPoll = make(chan struct{})
	d.mu.Unlock()

	d.Base.TransitionConnected(d.replaySend)

	if err := d.sendConnect(); err != nil {
		driverLog.Warnf("qlab: sending /connect: %v", err)
	}
	if err := d.sendRaw("updates", []oscproto.Arg{oscproto.Int(1)}); err != nil {
		driverLog.Warnf("qlab: subscribing to updates: %v", err)
	}

	d.wg.Add(2)
	go d.readLoop(conn, d.stopPoll)
	go d.pollLoop(d.stopPoll)
	return nil
}

func (d *Driver) sendConnect() error {
	args := []oscproto.Arg{}
	if d.passcode != "" {
		args = append(args, oscproto.Str(d.passcode))
	}
	return d.sendRaw("connect", args)
}

func (d *Driver) replaySend(address string, args []oscproto.Arg) {
	d.HandleOSC(address, args)
}

// HandleOSC forwards (address, args) to the workspace unchanged.
func (d *Driver) HandleOSC(address string, args []oscproto.Arg) {
	if !d.Base.IsConnected() {
		d.Base.EnqueueReplay(address, args)
		return
	}
	if err := d.sendRaw(address, args); err != nil {
		driverLog.Warnf("qlab: sending %q: %v", address, err)
	}
}

func (d *Driver) sendRaw(address string, args []oscproto.Arg) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	data, err := oscproto.Encode(oscproto.New("/"+strings.TrimPrefix(address, "/"), args...))
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	_, err = conn.Write(data)
	if err != nil {
		d.Base.TransitionError(err)
	}
	return err
}

func (d *Driver) pollLoop(stop chan struct{}) {
	defer d.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := d.sendRaw("cue/playhead/text", nil); err != nil {
				return
			}
			if err := d.sendRaw("runningCues", nil); err != nil {
				return
			}
		}
	}
}

func (d *Driver) readLoop(conn *net.UDPConn, stopPoll chan struct{}) {
	defer d.wg.Done()
	buf := make([]byte, 65536)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			close(stopPoll)
			d.Base.TransitionDisconnected()
			return
		}
		msg, err := oscproto.Decode(buf[:n])
		if err != nil {
			driverLog.Warnf("qlab: decoding inbound datagram: %v", err)
			continue
		}
		d.Base.NoteInboundData()
		d.handleInbound(msg)
	}
}

// handleInbound parses a "/reply/<original-address>" datagram and emits
// feedback for the two polled addresses this driver cares about; every
// other reply is acknowledged by QLab but carries nothing the hub tracks.
func (d *Driver) handleInbound(msg oscproto.Message) {
	const replyPrefix = "/reply/"
	if !strings.HasPrefix(msg.Address, replyPrefix) {
		return
	}
	original := strings.TrimPrefix(msg.Address, replyPrefix)

	if len(msg.Args) != 1 {
		return
	}
	raw, ok := msg.Args[0].AsString()
	if !ok {
		return
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		driverLog.Warnf("qlab: reply for %q is not valid JSON: %v", original, err)
		return
	}
	data := string(envelope.Data)

	switch original {
	case "cue/playhead/text":
		if data == d.lastPlayhead {
			return
		}
		d.lastPlayhead = data
		d.EmitFeedback("cue/playhead/text", []oscproto.Arg{oscproto.Str(data)})
	case "runningCues":
		if data == d.lastRunning {
			return
		}
		d.lastRunning = data
		d.EmitFeedback("runningCues", []oscproto.Arg{oscproto.Str(data)})
	}
}

// HandleFadeTick is a no-op: QLab cue levels are driven by cue-level
// fade durations inside the workspace, not this hub's fade engine.
func (d *Driver) HandleFadeTick(string, float64) {}

// HandleFeedback never claims unprefixed addresses; QLab telemetry
// arrives on this driver's own socket via handleInbound, not through the
// dispatcher's shared feedback-offer loop.
func (d *Driver) HandleFeedback(string, []oscproto.Arg) bool { return false }
