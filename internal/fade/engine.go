// Package fade implements the single shared fade scheduler (spec.md
// §4.8): a fixed-rate tick loop interpolating every active fade and
// delivering ticks to the owning driver. The map of active fades and the
// map of tracked current values are owned exclusively by the tick
// goroutine; every other goroutine talks to the engine over channels
// (spec.md §5), mirroring how the cue sequencer and the rest of the hub
// never share mutable state across a driver boundary.
package fade

import (
	"strings"
	"time"

	"github.com/mousetraptech/productionhub/internal/logging"
)

// REVISION: fade-v1-tick-loop
const revision = "fade-v1-tick-loop"

var log = logging.New("fade")

func init() {
	log.Debugf("REVISION: %s loaded", revision)
}

// TickInterval is the fixed tick period, corresponding to a 50 Hz
// scheduler frequency (spec.md §4.8: "≥50 Hz").
const TickInterval = 20 * time.Millisecond

// Sink receives ticks for fade keys, split back into (driverName,
// localKey) — the inverse of the "<driverName>:<local-key>" format
// spec.md §4.4 mandates for registered fade keys.
type Sink interface {
	HandleFadeTick(driverName, localKey string, value float64)
}

type activeFade struct {
	start, end float64
	startTime  time.Time
	duration   time.Duration
	easing     Easing
}

// StartFadeRequest is the public parameter struct for Engine.StartFade.
// FallbackStart is only used when Key has no tracked current value yet
// (spec.md §4.8); it is also seeded as the tracked value in that case.
type StartFadeRequest struct {
	Key           string
	EndValue      float64
	DurationMs    int64
	Easing        Easing
	FallbackStart float64
}

type startCmd struct {
	req StartFadeRequest
}

type cancelCmd struct {
	key          string
	snapToTarget bool
}

type setValueCmd struct {
	key   string
	value float64
}

type getValueCmd struct {
	key  string
	resp chan getValueResult
}

type getValueResult struct {
	value float64
	ok    bool
}

// Engine is the shared fade scheduler. Construct with NewEngine and call
// Run in its own goroutine; it exits when Stop is called.
type Engine struct {
	sink Sink
	now  func() time.Time

	active   map[string]*activeFade
	current  map[string]float64

	startCh     chan startCmd
	cancelCh    chan cancelCmd
	cancelAllCh chan struct{}
	setCh       chan setValueCmd
	getCh       chan getValueCmd
	stopCh      chan struct{}
}

func NewEngine(sink Sink) *Engine {
	return &Engine{
		sink:        sink,
		now:         time.Now,
		active:      make(map[string]*activeFade),
		current:     make(map[string]float64),
		startCh:     make(chan startCmd, 64),
		cancelCh:    make(chan cancelCmd, 64),
		cancelAllCh: make(chan struct{}, 1),
		setCh:       make(chan setValueCmd, 256),
		getCh:       make(chan getValueCmd, 64),
		stopCh:      make(chan struct{}),
	}
}

// Stop halts the Run loop.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// StartFade schedules (or replaces) a fade (spec.md §4.8). Non-blocking:
// enqueues a command consumed by the tick goroutine.
func (e *Engine) StartFade(req StartFadeRequest) {
	e.startCh <- startCmd{req: req}
}

// CancelFade removes the fade for key, optionally emitting one final
// tick at the fade's end value (spec.md §4.8).
func (e *Engine) CancelFade(key string, snapToTarget bool) {
	e.cancelCh <- cancelCmd{key: key, snapToTarget: snapToTarget}
}

// CancelAll removes every active fade without emitting a final tick for
// any of them (spec.md §4.2: "/fade/stop" with no key cancels all).
func (e *Engine) CancelAll() {
	select {
	case e.cancelAllCh <- struct{}{}:
	default:
	}
}

// SetCurrentValue records a direct write to the tracked current value for
// key (spec.md §4.8) — used by drivers when feedback arrives or a direct
// (non-fade) set is made.
func (e *Engine) SetCurrentValue(key string, v float64) {
	e.setCh <- setValueCmd{key: key, value: v}
}

// GetCurrentValue reads back the tracked current value for key. Blocks
// briefly on a round trip through the tick goroutine.
func (e *Engine) GetCurrentValue(key string) (float64, bool) {
	resp := make(chan getValueResult, 1)
	e.getCh <- getValueCmd{key: key, resp: resp}
	r := <-resp
	return r.value, r.ok
}

// Run drives the tick loop. Call in its own goroutine; blocks until Stop.
func (e *Engine) Run() {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case cmd := <-e.startCh:
			e.handleStart(cmd.req)
		case cmd := <-e.cancelCh:
			e.handleCancel(cmd.key, cmd.snapToTarget)
		case <-e.cancelAllCh:
			e.active = make(map[string]*activeFade)
		case cmd := <-e.setCh:
			e.current[cmd.key] = cmd.value
		case cmd := <-e.getCh:
			v, ok := e.current[cmd.key]
			cmd.resp <- getValueResult{value: v, ok: ok}
		case now := <-ticker.C:
			e.tick(now)
		}
	}
}

func (e *Engine) handleStart(req StartFadeRequest) {
	start := req.FallbackStart
	if v, ok := e.current[req.Key]; ok {
		start = v
	}
	e.current[req.Key] = start

	e.active[req.Key] = &activeFade{
		start:    start,
		end:      req.EndValue,
		startTime: e.now(),
		duration: time.Duration(req.DurationMs) * time.Millisecond,
		easing:   req.Easing,
	}
}

func (e *Engine) handleCancel(key string, snapToTarget bool) {
	f, ok := e.active[key]
	if !ok {
		return
	}
	delete(e.active, key)
	if snapToTarget {
		e.current[key] = f.end
		e.deliver(key, f.end)
	}
}

func (e *Engine) tick(now time.Time) {
	for key, f := range e.active {
		var t float64
		if f.duration <= 0 {
			t = 1
		} else {
			t = float64(now.Sub(f.startTime)) / float64(f.duration)
		}
		if t < 0 {
			t = 0
		}
		done := t >= 1
		if done {
			t = 1
		}

		eased := apply(f.easing, t)
		value := f.start + (f.end-f.start)*eased
		e.current[key] = value
		e.deliver(key, value)

		if done {
			delete(e.active, key)
		}
	}
}

func (e *Engine) deliver(key string, value float64) {
	driverName, localKey, ok := splitKey(key)
	if !ok {
		log.Warnf("fade key %q missing \"driver:localKey\" separator, dropping tick", key)
		return
	}
	if e.sink != nil {
		e.sink.HandleFadeTick(driverName, localKey, value)
	}
}

func splitKey(key string) (driverName, localKey string, ok bool) {
	idx := strings.IndexByte(key, ':')
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}
