// Package hub wires every component this repository builds — the OSC
// listener, the device driver registry, the fade engine, the cue
// sequencer, and the dispatcher that ties them together — into one
// running process, from a loaded config.Config (spec.md §6).
package hub

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mousetraptech/productionhub/internal/config"
	"github.com/mousetraptech/productionhub/internal/cue"
	"github.com/mousetraptech/productionhub/internal/dispatcher"
	"github.com/mousetraptech/productionhub/internal/driverreg"
	"github.com/mousetraptech/productionhub/internal/drivers/avantis"
	"github.com/mousetraptech/productionhub/internal/drivers/chamsys"
	"github.com/mousetraptech/productionhub/internal/drivers/obs"
	"github.com/mousetraptech/productionhub/internal/drivers/qlab"
	"github.com/mousetraptech/productionhub/internal/drivers/touchdesigner"
	"github.com/mousetraptech/productionhub/internal/drivers/visca"
	"github.com/mousetraptech/productionhub/internal/fade"
	"github.com/mousetraptech/productionhub/internal/logging"
	"github.com/mousetraptech/productionhub/internal/oscproto"
	"github.com/mousetraptech/productionhub/internal/osclisten"
)

// REVISION: hub-v1-wiring
const revision = "hub-v1-wiring"

var log = logging.New("hub")

func init() {
	log.Debugf("REVISION: %s loaded", revision)
}

// neverHeartbeat lists device types spec.md §4.10 requires to run with the
// heartbeat watchdog permanently disabled, regardless of config: VISCA
// cameras never send unsolicited data, and the UDP relays either forward
// blind (chamsys/touchdesigner) or are polled on this driver's own
// schedule rather than pushing keepalives (qlab).
var neverHeartbeat = map[string]bool{
	"visca":         true,
	"chamsys":       true,
	"touchdesigner": true,
	"qlab":          true,
}

// Hub owns every long-lived component and the goroutines relaying
// feedback from each driver back to upstream OSC clients.
type Hub struct {
	cfg        *config.Config
	registry   *driverreg.Registry
	fadeEngine *fade.Engine
	sequencer  *cue.Sequencer
	dispatch   *dispatcher.Dispatcher
	listener   *osclisten.Listener
	clients    *osclisten.UpstreamClients

	stopFeedback chan struct{}
}

// Build constructs every component and wires them together, binding the
// listen socket, but does not start any goroutines; call Start for that.
func Build(cfg *config.Config) (*Hub, error) {
	registry := driverreg.NewRegistry()

	for _, dev := range cfg.Devices {
		drv, err := buildDriver(dev)
		if err != nil {
			return nil, fmt.Errorf("hub: building driver %q: %w", dev.Name, err)
		}
		applyLifecycleConfig(drv, dev)
		if err := registry.Add(drv); err != nil {
			return nil, fmt.Errorf("hub: %w", err)
		}
	}

	fadeEngine := fade.NewEngine(registry)
	wireAvantisFade(registry, fadeEngine)

	h := &Hub{
		cfg:          cfg,
		registry:     registry,
		fadeEngine:   fadeEngine,
		clients:      osclisten.NewUpstreamClients(),
		stopFeedback: make(chan struct{}),
	}

	h.sequencer = cue.NewSequencer(h.dispatchCueAction, h.onCueEvent)
	h.dispatch = dispatcher.New(registry, fadeEngine, h.sequencer, cue.LoadFile, h.onStatus, nil)

	listenAddr := net.JoinHostPort(cfg.ListenAddr, strconv.Itoa(cfg.ListenPort))
	listener, err := osclisten.NewListener(listenAddr, cfg.ReplyPort, h.clients, h.onInbound)
	if err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}
	h.listener = listener

	if cfg.CueListPath != "" {
		list, err := cue.LoadFile(cfg.CueListPath)
		if err != nil {
			log.Warnf("loading initial cue list %q: %v", cfg.CueListPath, err)
		} else {
			h.sequencer.Load(list)
		}
	}

	return h, nil
}

func buildDriver(dev config.Device) (driverreg.Driver, error) {
	switch dev.Type {
	case "avantis":
		return avantis.New(dev.Name, dev.Prefix, hostPort(dev), dev.MIDIBaseChannel), nil
	case "chamsys":
		return chamsys.New(dev.Name, dev.Prefix, hostPort(dev)), nil
	case "obs":
		return obs.New(dev.Name, dev.Prefix, fmt.Sprintf("ws://%s", hostPort(dev)), dev.AuthPassword), nil
	case "visca":
		return visca.New(dev.Name, dev.Prefix, hostPort(dev), dev.CameraAddress, dev.Transport), nil
	case "touchdesigner":
		return touchdesigner.New(dev.Name, dev.Prefix, hostPort(dev)), nil
	case "qlab":
		return qlab.New(dev.Name, dev.Prefix, hostPort(dev), dev.ReplyPasscode), nil
	default:
		return nil, fmt.Errorf("unknown device type %q", dev.Type)
	}
}

func hostPort(dev config.Device) string {
	return net.JoinHostPort(dev.Host, strconv.Itoa(dev.Port))
}

// driverBase is satisfied by every concrete driver's embedded
// *driverbase.Base, letting applyLifecycleConfig reach the backoff and
// heartbeat knobs without a type switch per driver package.
type driverBase interface {
	SetBackoff(initial, max time.Duration)
	SetHeartbeat(enabled bool, interval time.Duration)
}

func applyLifecycleConfig(drv driverreg.Driver, dev config.Device) {
	base, ok := drv.(driverBase)
	if !ok {
		return
	}

	base.SetBackoff(
		time.Duration(dev.Reconnect.InitialMs)*time.Millisecond,
		time.Duration(dev.Reconnect.MaxMs)*time.Millisecond,
	)

	enabled := dev.Heartbeat.Enabled && !neverHeartbeat[dev.Type]
	if dev.Heartbeat.Enabled && neverHeartbeat[dev.Type] {
		log.Warnf("device %q (%s): heartbeat forced off, this device type never sends unsolicited data", dev.Name, dev.Type)
	}
	base.SetHeartbeat(enabled, time.Duration(dev.Heartbeat.IntervalMs)*time.Millisecond)

	if avantisDrv, ok := drv.(*avantis.Driver); ok && dev.EchoSuppressionMs > 0 {
		avantisDrv.SetEchoWindow(time.Duration(dev.EchoSuppressionMs) * time.Millisecond)
	}
}

// wireAvantisFade connects the Avantis driver's fade requests to the
// shared fade engine, prefixing the driver name onto the local key so
// fade.Engine's deliver can route ticks back via Registry.HandleFadeTick
// (spec.md §4.4/§4.8).
func wireAvantisFade(registry *driverreg.Registry, fadeEngine *fade.Engine) {
	for _, d := range registry.All() {
		a, ok := d.(*avantis.Driver)
		if !ok {
			continue
		}
		name := a.Name()
		a.StartFade = func(localKey string, endValue float64, durationMs int64, easing string) {
			fadeEngine.StartFade(fade.StartFadeRequest{
				Key:        name + ":" + localKey,
				EndValue:   endValue,
				DurationMs: durationMs,
				Easing:     fade.Easing(easing),
			})
		}
	}
}

func (h *Hub) onInbound(msg oscproto.Message, sender *net.UDPAddr) {
	h.dispatch.Dispatch(msg)
}

func (h *Hub) dispatchCueAction(a cue.Action) {
	h.dispatch.DispatchCueAction(a)
}

func (h *Hub) onCueEvent(e cue.Event) {
	switch e.Kind {
	case cue.EventCueFired:
		log.Infof("cue %s fired (index %d)", e.CueID, e.Index)
	case cue.EventCueComplete:
		log.Infof("cue %s complete (index %d)", e.CueID, e.Index)
	}
}

func (h *Hub) onStatus(healths []driverreg.HealthSnapshot, playheadID string, running bool) {
	args := []oscproto.Arg{oscproto.Str(playheadID), oscproto.Bool(running), oscproto.Int(int32(len(healths)))}
	h.listener.SendToClients(oscproto.New("/hub/status", args...))
}

// Start connects every driver and launches the fade engine tick loop,
// the listener's receive loop, and one feedback-relay goroutine per
// driver (spec.md §5). It does not block.
func (h *Hub) Start() {
	h.registry.ConnectAll()
	go h.fadeEngine.Run()
	go func() {
		if err := h.listener.Serve(); err != nil {
			log.Warnf("listener exited: %v", err)
		}
	}()
	for _, drv := range h.registry.All() {
		go h.relayFeedback(drv)
	}
}

func (h *Hub) relayFeedback(drv driverreg.Driver) {
	for {
		select {
		case <-h.stopFeedback:
			return
		case ev, ok := <-drv.Feedback():
			if !ok {
				return
			}
			address := drv.Prefix()
			if ev.Address != "" {
				address = address + "/" + ev.Address
			}
			h.listener.SendToClients(oscproto.New(address, ev.Args...))
		}
	}
}

// Stop gracefully shuts everything down: stops accepting new cue/fade
// work, disconnects every driver, and closes the listen socket. ctx
// bounds how long driver disconnects are allowed to take.
func (h *Hub) Stop(ctx context.Context) error {
	close(h.stopFeedback)
	h.sequencer.Shutdown()
	h.fadeEngine.Stop()

	done := make(chan struct{})
	go func() {
		h.registry.DisconnectAll()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warnf("driver disconnect did not complete before shutdown deadline")
	}

	return h.listener.Close()
}

// Status returns the registered drivers' health snapshots, for --check
// and /hub/status parity.
func (h *Hub) Status() []driverreg.HealthSnapshot {
	return h.registry.Snapshot()
}


