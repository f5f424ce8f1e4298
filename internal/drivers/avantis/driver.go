package avantis

import (
	"bufio"
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

// REVISION: avantis-v1-tcp-driver
const revision = "avantis-v1-tcp-driver"

var driverLog = logging.New("driver.avantis")

func init() {
	driverLog.Debugf("REVISION: %s loaded", revision)
}

// EchoWindow is how long after sending a value we suppress an inbound
// console echo of that same (quantized) value, preventing a feedback
// loop between our own send and the console reflecting it back
// (spec.md §4.4's echo suppression requirement).
const EchoWindow = 100 * time.Millisecond

var familyStrip = map[string]StripType{
	"ch":  StripInput,
	"grp": StripGroup,
	"mix": StripMix,
	"mtx": StripMatrix,
	"fxs": StripFXSend,
	"fxr": StripFXReturn,
	"dca": StripDCA,
}

var stripFamily = map[StripType]string{
	StripInput:    "ch",
	StripGroup:    "grp",
	StripMix:      "mix",
	StripMatrix:   "mtx",
	StripFXSend:   "fxs",
	StripFXReturn: "fxr",
	StripDCA:      "dca",
}

type sentRecord struct {
	quantized byte
	at        time.Time
}

// FadeStarter schedules a fade on the shared fade engine for one of this
// driver's local keys (spec.md §4.4 "Fade key format": the driver hands
// back a bare local key; the caller is responsible for prefixing it with
// "<driverName>:" before registering it with the engine).
type FadeStarter func(localKey string, endValue float64, durationMs int64, easing string)

// Driver binds the hub's OSC address space to an Avantis console over a
// MIDI-over-TCP link, embedding driverbase.Base for connection lifecycle
// and replay handling.
type Driver struct {
	*driverbase.Base

	host        string
	baseChannel int

	// StartFade is wired by the hub at startup to the fade engine's
	// StartFade, letting "/mix/fade" addresses (spec.md §4.4) schedule a
	// timed ramp instead of an immediate NRPN send. Nil (the zero value,
	// e.g. in unit tests) just drops fade requests with a warning.
	StartFade FadeStarter

	echoWindow time.Duration

	mu      sync.Mutex
	conn    net.Conn
	parser  *Parser
	recent  map[string]sentRecord
}

// New constructs an Avantis driver. host is "host:port" for the MIDI
// TCP link; baseChannel is the MIDI channel the driver's +0 strip family
// (console input channels) addresses, per the driver's config entry.
func New(name, prefix, host string, baseChannel int) *Driver {
	d := &Driver{
		host:        host,
		baseChannel: baseChannel,
		parser:      NewParser(),
		recent:      make(map[string]sentRecord),
		echoWindow:  EchoWindow,
	}
	d.Base = driverbase.New(name, prefix, driverreg.TransportTCP, 64)
	d.Base.Dial = d.dial
	return d
}

// SetEchoWindow overrides the echo suppression window (config.Device's
// "feedback.echoSuppressionMs"); zero restores the default.
func (d *Driver) SetEchoWindow(window time.Duration) {
	if window <= 0 {
		window = EchoWindow
	}
	d.mu.Lock()
	d.echoWindow = window
	d.mu.Unlock()
}

func (d *Driver) dial() error {
	conn, err := net.DialTimeout("tcp", d.host, 5*time.Second)
	if err != nil {
		return fmt.Errorf("avantis: dial %s: %w", d.host, err)
	}
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()

	d.Base.TransitionConnected(d.replaySend)
	go d.readLoop(conn)
	return nil
}

func (d *Driver) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		b, err := r.ReadByte()
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
		if ev, ok := d.parser.Feed(b); ok {
			d.handleInbound(ev)
		}
	}
}

func (d *Driver) replaySend(address string, args []oscproto.Arg) {
	d.HandleOSC(address, args)
}

// HandleOSC parses one of (spec.md §6's /avantis address table):
//
//	<family>/<n>/mix/fader   0..1
//	<family>/<n>/mix/pan     -1..1
//	<family>/<n>/mix/mute    bool|int
//	<family>/<n>/mix/fade    target duration-s [easing]
//	dca/<n>/fader            0..1
//	main/mix/fader
//	main/mix/mute
//	scene/recall             <n>
//
// where <family> is one of ch, grp, mix, mtx, fxs, fxr. dca addresses are
// two-level (no "/mix/" segment) per spec.md §4.4/§6.
func (d *Driver) HandleOSC(address string, args []oscproto.Arg) {
	segs := strings.Split(address, "/")
	if len(segs) == 0 {
		return
	}

	if segs[0] == "scene" && len(segs) == 2 && segs[1] == "recall" {
		scene, ok := argInt(args)
		if !ok {
			driverLog.Warnf("avantis: scene/recall missing scene number argument")
			return
		}
		d.sendSceneRecall(scene)
		return
	}

	if segs[0] == "main" && len(segs) == 3 && segs[1] == "mix" {
		d.handleStripParam(StripMain, 1, segs[2], args)
		return
	}

	if segs[0] == "dca" && len(segs) == 3 {
		n, err := strconv.Atoi(segs[1])
		if err != nil {
			driverLog.Warnf("avantis: bad strip number %q", segs[1])
			return
		}
		d.handleStripParam(StripDCA, n, segs[2], args)
		return
	}

	if len(segs) == 4 && segs[2] == "mix" {
		t, ok := familyStrip[segs[0]]
		if !ok {
			driverLog.Warnf("avantis: unknown strip family %q", segs[0])
			return
		}
		n, err := strconv.Atoi(segs[1])
		if err != nil {
			driverLog.Warnf("avantis: bad strip number %q", segs[1])
			return
		}
		d.handleStripParam(t, n, segs[3], args)
		return
	}

	driverLog.Warnf("avantis: unrecognized address %q", address)
}

func (d *Driver) handleStripParam(t StripType, number int, param string, args []oscproto.Arg) {
	ch, stripHex, err := ResolveStrip(t, number, d.baseChannel)
	if err != nil {
		driverLog.Warnf("avantis: %v", err)
		return
	}

	switch param {
	case "fader":
		v, ok := argFloat(args)
		if !ok {
			return
		}
		d.sendFader(ch, stripHex, v)
	case "pan":
		v, ok := argFloat(args)
		if !ok {
			return
		}
		d.sendPan(ch, stripHex, v)
	case "mute":
		v, ok := argBool(args)
		if !ok {
			return
		}
		d.sendMute(ch, stripHex, v)
	case "fade":
		d.startStripFade(t, number, args)
	default:
		driverLog.Warnf("avantis: unknown strip parameter %q", param)
	}
}

// startStripFade handles "<family>/<n>/mix/fade <target> <duration-s>
// [easing]" (spec.md §6): it never touches the wire directly, instead
// registering a fade with the shared engine under this driver's
// "<family>/<n>/fader" local key — the same key HandleFadeTick expects.
func (d *Driver) startStripFade(t StripType, number int, args []oscproto.Arg) {
	if len(args) < 2 {
		driverLog.Warnf("avantis: /mix/fade requires target and duration-s arguments")
		return
	}
	target, ok := argFloat(args[:1])
	if !ok {
		return
	}
	durationS, ok := argFloat(args[1:2])
	if !ok {
		return
	}
	easing := "linear"
	if len(args) >= 3 {
		if s, ok := args[2].AsString(); ok {
			easing = s
		}
	}

	localKey, ok := fadeLocalKey(t, number)
	if !ok {
		driverLog.Warnf("avantis: no fade-capable local key for strip type %v", t)
		return
	}
	if d.StartFade == nil {
		driverLog.Warnf("avantis: /mix/fade received with no fade engine wired")
		return
	}
	d.StartFade(localKey, target, int64(durationS*1000), easing)
}

// fadeLocalKey mirrors HandleFadeTick's parsing of "<family>/<n>/fader"
// (or "main/fader") in reverse, so /mix/fade and fade-tick delivery agree
// on the same key for a given strip.
func fadeLocalKey(t StripType, number int) (string, bool) {
	if t == StripMain {
		return "main/fader", true
	}
	family, ok := stripFamily[t]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s/%d/fader", family, number), true
}

func argInt(args []oscproto.Arg) (int, bool) {
	if len(args) == 0 {
		return 0, false
	}
	v, ok := args[0].AsInt64()
	if !ok {
		return 0, false
	}
	return int(v), true
}

func argFloat(args []oscproto.Arg) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	return args[0].AsFloat64()
}

func argBool(args []oscproto.Arg) (bool, bool) {
	if len(args) == 0 {
		return false, false
	}
	if args[0].Kind == oscproto.KindBool {
		return args[0].Bool, true
	}
	if n, ok := args[0].AsFloat64(); ok {
		return n != 0, true
	}
	return false, false
}

// HandleFadeTick translates one fade-engine tick into an NRPN send,
// deduping against the quantized 7-bit value already in flight so a
// 50Hz tick stream doesn't spam the console with byte-identical NRPN
// triples (spec.md §4.8 fade delivery, §4.4 wire format).
func (d *Driver) HandleFadeTick(localKey string, value float64) {
	segs := strings.Split(localKey, "/")
	if len(segs) < 2 {
		return
	}

	var t StripType
	var numStart int
	if segs[0] == "main" {
		t, numStart = StripMain, -1
	} else {
		var ok bool
		t, ok = familyStrip[segs[0]]
		if !ok {
			return
		}
		numStart = 1
	}

	number := 1
	param := ""
	if numStart >= 0 {
		if len(segs) < 3 {
			return
		}
		n, err := strconv.Atoi(segs[numStart])
		if err != nil {
			return
		}
		number = n
		param = segs[2]
	} else {
		param = segs[1]
	}

	ch, stripHex, err := ResolveStrip(t, number, d.baseChannel)
	if err != nil {
		return
	}

	switch param {
	case "fader":
		d.sendFader(ch, stripHex, value)
	case "pan":
		d.sendPan(ch, stripHex, value)
	}
}

func (d *Driver) sendFader(ch int, stripHex byte, value float64) {
	key := fmt.Sprintf("f:%d:%x", ch, stripHex)
	q := quantize7(value)
	if d.dedup(key, q) {
		return
	}
	bytes, err := BuildNRPNFader(ch, stripHex, value)
	if err != nil {
		driverLog.Warnf("avantis: %v", err)
		return
	}
	d.write(bytes)
}

func (d *Driver) sendPan(ch int, stripHex byte, value float64) {
	key := fmt.Sprintf("p:%d:%x", ch, stripHex)
	q := quantizeBipolar7(value)
	if d.dedup(key, q) {
		return
	}
	bytes, err := BuildNRPNPan(ch, stripHex, value)
	if err != nil {
		driverLog.Warnf("avantis: %v", err)
		return
	}
	d.write(bytes)
}

func (d *Driver) sendMute(ch int, stripHex byte, muted bool) {
	key := fmt.Sprintf("m:%d:%x", ch, stripHex)
	q := byte(0)
	if muted {
		q = 1
	}
	if d.dedup(key, q) {
		return
	}
	bytes, err := BuildMute(ch, stripHex, muted)
	if err != nil {
		driverLog.Warnf("avantis: %v", err)
		return
	}
	d.write(bytes)
}

func (d *Driver) sendSceneRecall(scene int) {
	bytes, err := BuildSceneRecall(d.baseChannel&0x0F, scene)
	if err != nil {
		driverLog.Warnf("avantis: %v", err)
		return
	}
	d.write(bytes)
}

// dedup reports whether value is identical to the last value sent for
// key within EchoWindow, in which case the caller should skip the send.
// It also records the send for inbound echo suppression.
func (d *Driver) dedup(key string, quantized byte) bool {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.recent[key]; ok && prev.quantized == quantized && now.Sub(prev.at) < d.echoWindow {
		return true
	}
	d.recent[key] = sentRecord{quantized: quantized, at: now}
	return false
}

func (d *Driver) write(payload []byte) {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()

	if conn == nil {
		driverLog.Warnf("avantis: not connected, dropping %d bytes", len(payload))
		return
	}
	if _, err := conn.Write(payload); err != nil {
		d.Base.TransitionError(fmt.Errorf("avantis: write: %w", err))
	}
}

func (d *Driver) handleInbound(ev InboundEvent) {
	switch ev.Kind {
	case InboundFader, InboundPan:
		t, number, ok := ReverseResolveStrip(int(ev.Channel), ev.StripHex, d.baseChannel)
		if !ok {
			return
		}
		param := "fader"
		q := quantize7(ev.Value)
		if ev.Kind == InboundPan {
			param = "pan"
			q = quantizeBipolar7(ev.Value)
		}
		key := fmt.Sprintf("%c:%d:%x", param[0], int(ev.Channel), ev.StripHex)
		if d.suppressedEcho(key, q) {
			return
		}
		d.emitStripFeedback(t, number, param, oscproto.Float(float32(ev.Value)))
	case InboundMute:
		t, number, ok := ReverseResolveStrip(int(ev.Channel), ev.StripHex, d.baseChannel)
		if !ok {
			return
		}
		q := byte(0)
		if ev.Muted {
			q = 1
		}
		key := fmt.Sprintf("m:%d:%x", int(ev.Channel), ev.StripHex)
		if d.suppressedEcho(key, q) {
			return
		}
		d.emitStripFeedback(t, number, "mute", oscproto.Bool(ev.Muted))
	case InboundScene:
		d.EmitFeedback("scene/current", []oscproto.Arg{oscproto.Int(int32(ev.Scene))})
	}
}

func (d *Driver) suppressedEcho(key string, quantized byte) bool {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	prev, ok := d.recent[key]
	if ok && prev.quantized == quantized && now.Sub(prev.at) < d.echoWindow {
		d.Base.NoteEchoSuppressed()
		return true
	}
	return false
}

// emitStripFeedback builds a prefix-relative feedback address matching
// spec.md §4.4/§6: every family rides "<family>/<n>/mix/<param>" except
// dca, which is two-level ("dca/<n>/<param>", no "/mix/" segment).
func (d *Driver) emitStripFeedback(t StripType, number int, param string, arg oscproto.Arg) {
	family, ok := stripFamily[t]
	var address string
	switch t {
	case StripMain:
		address = fmt.Sprintf("main/mix/%s", param)
	case StripDCA:
		address = fmt.Sprintf("dca/%d/%s", number, param)
	default:
		if !ok {
			return
		}
		address = fmt.Sprintf("%s/%d/mix/%s", family, number, param)
	}
	d.EmitFeedback(address, []oscproto.Arg{arg})
}

// HandleFeedback never claims unprefixed addresses; the console only
// ever speaks over its own MIDI link, never bare UDP broadcast, so it
// has nothing to offer the unprefixed feedback loop (spec.md §4.2 step
// 4 is for devices like ChamSys that echo unprefixed telemetry).
func (d *Driver) HandleFeedback(string, []oscproto.Arg) bool { return false }
