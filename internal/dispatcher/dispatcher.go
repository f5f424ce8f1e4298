// Package dispatcher implements the hub's central routing decision
// (spec.md §4.2): for every inbound (address, args) pair, try the global
// handlers, then the hub/cue commands, then longest-prefix driver routing,
// then the unprefixed feedback-parser offer loop, and finally drop with a
// logged warning.
package dispatcher

import (
	"strings"

	"github.com/mousetraptech/productionhub/internal/cue"
	"github.com/mousetraptech/productionhub/internal/driverreg"
	"github.com/mousetraptech/productionhub/internal/fade"
	"github.com/mousetraptech/productionhub/internal/logging"
	"github.com/mousetraptech/productionhub/internal/oscproto"
)

// REVISION: dispatcher-v1-resolution-order
const revision = "dispatcher-v1-resolution-order"

var log = logging.New("dispatcher")

func init() {
	log.Debugf("REVISION: %s loaded", revision)
}

// CueListLoader loads a cue list from disk for "/hub/cuelist/load <path>".
type CueListLoader func(path string) (*cue.List, error)

// StatusHandler receives a status snapshot for "/hub/status". Supplied by
// the caller (e.g. to relay it back out as feedback); optional.
type StatusHandler func(healths []driverreg.HealthSnapshot, playheadID string, running bool)

// SystemCheckHandler is invoked for "/system/check" (spec.md §4.2: "the
// external systems-check collaborator", out of this module's scope).
type SystemCheckHandler func()

// Dispatcher wires together the registry, fade engine, and cue sequencer
// behind the single resolution order spec.md §4.2 defines.
type Dispatcher struct {
	registry   *driverreg.Registry
	fadeEngine *fade.Engine
	sequencer  *cue.Sequencer

	loadCueList CueListLoader
	onStatus    StatusHandler
	onSysCheck  SystemCheckHandler
}

// New constructs a Dispatcher. loadCueList, onStatus, and onSysCheck may be
// nil; the corresponding hub commands become no-ops (logged) in that case.
func New(registry *driverreg.Registry, fadeEngine *fade.Engine, sequencer *cue.Sequencer, loadCueList CueListLoader, onStatus StatusHandler, onSysCheck SystemCheckHandler) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		fadeEngine:  fadeEngine,
		sequencer:   sequencer,
		loadCueList: loadCueList,
		onStatus:    onStatus,
		onSysCheck:  onSysCheck,
	}
}

// Dispatch resolves and delivers one inbound OSC message (spec.md §4.2).
func (d *Dispatcher) Dispatch(msg oscproto.Message) {
	addr := msg.Address

	if handled := d.tryGlobal(addr, msg.Args); handled {
		return
	}
	if handled := d.tryHub(addr, msg.Args); handled {
		return
	}
	if drv, remainder, ok := d.registry.Match(addr); ok {
		drv.HandleOSC(remainder, msg.Args)
		return
	}
	for _, drv := range d.registry.InRegistrationOrder() {
		if drv.HandleFeedback(addr, msg.Args) {
			return
		}
	}
	log.Infof("unroutable address %q, dropping", addr)
}

func (d *Dispatcher) tryGlobal(addr string, args []oscproto.Arg) bool {
	switch {
	case addr == "/fade/stop":
		if d.fadeEngine == nil {
			return true
		}
		if len(args) > 0 {
			if key, ok := args[0].AsString(); ok {
				d.fadeEngine.CancelFade(key, true)
				return true
			}
		}
		d.fadeEngine.CancelAll()
		return true
	case addr == "/system/check":
		if d.onSysCheck != nil {
			d.onSysCheck()
		}
		return true
	}
	return false
}

func (d *Dispatcher) tryHub(addr string, args []oscproto.Arg) bool {
	if !strings.HasPrefix(addr, "/hub/") && addr != "/hub" {
		return false
	}
	rest := strings.TrimPrefix(addr, "/hub")
	if rest == "/status" {
		d.handleStatus()
		return true
	}
	if d.sequencer == nil {
		log.Warnf("hub command %q received with no sequencer wired", addr)
		return true
	}

	switch {
	case rest == "/go":
		if err := d.sequencer.Go(); err != nil {
			log.Debugf("/hub/go: %v", err)
		}
	case strings.HasPrefix(rest, "/go/"):
		id := strings.TrimPrefix(rest, "/go/")
		if err := d.sequencer.GoCue(id); err != nil {
			log.Debugf("/hub/go/%s: %v", id, err)
		}
	case rest == "/stop":
		d.sequencer.Stop()
	case rest == "/back":
		if err := d.sequencer.Back(); err != nil {
			log.Debugf("/hub/back: %v", err)
		}
	case rest == "/cuelist/load":
		d.handleCueListLoad(args)
	case rest == "/status":
		d.handleStatus()
	default:
		log.Infof("unknown hub command %q, dropping", addr)
	}
	return true
}

func (d *Dispatcher) handleCueListLoad(args []oscproto.Arg) {
	if d.loadCueList == nil {
		log.Warnf("/hub/cuelist/load received with no loader wired")
		return
	}
	if len(args) == 0 {
		log.Warnf("/hub/cuelist/load missing path argument")
		return
	}
	path, ok := args[0].AsString()
	if !ok {
		log.Warnf("/hub/cuelist/load path argument is not a string")
		return
	}
	list, err := d.loadCueList(path)
	if err != nil {
		log.Warnf("/hub/cuelist/load %q: %v", path, err)
		return
	}
	d.sequencer.Load(list)
}

func (d *Dispatcher) handleStatus() {
	healths := d.registry.Snapshot()
	playheadID, running := "", false
	if d.sequencer != nil {
		playheadID, _ = d.sequencer.Playhead()
		running = d.sequencer.Running()
	}
	if d.onStatus != nil {
		d.onStatus(healths, playheadID, running)
		return
	}
	log.Infof("status: %d drivers, playhead=%q running=%v", len(healths), playheadID, running)
}

// DispatchCueAction routes one fired cue action through the same resolution
// path a directly-received OSC message would take (spec.md §4.9).
func (d *Dispatcher) DispatchCueAction(a cue.Action) {
	d.Dispatch(oscproto.New(a.Address, a.Args...))
}
