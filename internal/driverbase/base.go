// Package driverbase provides the shared connection-lifecycle plumbing
// every concrete device driver embeds: state transitions, the reconnect
// backoff loop, the bounded replay queue, heartbeat tracking, and the
// event channels the registry/health manager read from.
//
// This generalizes the teacher's channel-owned lifecycle object
// (sandbox/internal/pty/hub.go's Hub: register/unregister/stop channels
// guarded by a sync.Once) into a per-driver connection state machine.
package driverbase

import (
	"sync"
	"time"

	"github.com/mousetraptech/productionhub/internal/driverreg"
	"github.com/mousetraptech/productionhub/internal/logging"
	"github.com/mousetraptech/productionhub/internal/oscproto"
	"github.com/mousetraptech/productionhub/internal/reconnect"
)

// Clock is injected for deterministic tests; production code uses
// realClock (time.Now / time.AfterFunc).
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Base is embedded by every concrete driver. It implements the
// connection-state, replay-queue, and event-channel portions of the
// driverreg.Driver contract; the concrete driver supplies HandleOSC,
// HandleFadeTick, HandleFeedback and a Dial function.
type Base struct {
	name      string
	prefix    string
	transport driverreg.Transport
	clock     Clock
	log       interface{ Warnf(string, ...any); Infof(string, ...any); Debugf(string, ...any) }

	// Dial performs the real connection attempt (blocking). Supplied by
	// the concrete driver at construction time.
	Dial func() error

	// HeartbeatEnabled/HeartbeatInterval configure the optional
	// heartbeat watchdog (spec.md §4.10); must stay disabled for
	// devices that never send unsolicited data.
	HeartbeatEnabled  bool
	HeartbeatInterval time.Duration

	mu             sync.Mutex
	state          driverreg.ConnState
	reconnectCount int
	lastConnected  time.Time
	lastErr        string
	lastErrAt      time.Time
	lastHeartbeat  time.Time
	echoSuppressed uint64
	backoff        *reconnect.Backoff
	replay         *reconnect.RingBuffer
	reconnectTimer Timer
	heartbeatTimer Timer
	stopped        bool

	connectedCh    chan struct{}
	disconnectedCh chan struct{}
	errCh          chan error
	feedbackCh     chan driverreg.FeedbackEvent
}

// New constructs a Base. replayCapacity <= 0 uses reconnect.DefaultCapacity.
func New(name, prefix string, transport driverreg.Transport, replayCapacity int) *Base {
	return &Base{
		name:           name,
		prefix:         prefix,
		transport:      transport,
		clock:          realClock{},
		log:            logging.New("driver." + name),
		state:          driverreg.StateDisconnected,
		backoff:        reconnect.NewBackoff(0, 0),
		replay:         reconnect.NewRingBuffer(replayCapacity),
		connectedCh:    make(chan struct{}, 8),
		disconnectedCh: make(chan struct{}, 8),
		errCh:          make(chan error, 8),
		feedbackCh:     make(chan driverreg.FeedbackEvent, 64),
	}
}

func (b *Base) Name() string                     { return b.name }
func (b *Base) Prefix() string                   { return b.prefix }
func (b *Base) Transport() driverreg.Transport   { return b.transport }
func (b *Base) Feedback() <-chan driverreg.FeedbackEvent { return b.feedbackCh }
func (b *Base) Connected() <-chan struct{}       { return b.connectedCh }
func (b *Base) Disconnected() <-chan struct{}    { return b.disconnectedCh }
func (b *Base) Errors() <-chan error             { return b.errCh }

func (b *Base) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == driverreg.StateConnected
}

// Connect kicks off a connection attempt on a new goroutine so callers
// (the hub's startup path) never block on transport I/O.
func (b *Base) Connect() error {
	b.mu.Lock()
	if b.state == driverreg.StateConnected || b.state == driverreg.StateConnecting {
		b.mu.Unlock()
		return nil
	}
	b.state = driverreg.StateConnecting
	b.mu.Unlock()

	go b.attemptDial()
	return nil
}

func (b *Base) attemptDial() {
	if b.Dial == nil {
		return
	}
	if err := b.Dial(); err != nil {
		b.TransitionError(err)
	}
}

// TransitionConnected marks the driver connected, resets backoff, and
// drains the replay queue through replay.
func (b *Base) TransitionConnected(replay func(address string, args []oscproto.Arg)) {
	b.mu.Lock()
	b.state = driverreg.StateConnected
	b.lastConnected = b.clock.Now()
	b.backoff.Reset()
	if b.reconnectTimer != nil {
		b.reconnectTimer.Stop()
		b.reconnectTimer = nil
	}
	pending := b.replay.Drain()
	b.mu.Unlock()

	select {
	case b.connectedCh <- struct{}{}:
	default:
	}

	for _, e := range pending {
		replay(e.Address, e.Args)
	}

	b.armHeartbeatLocked()
}

// TransitionDisconnected marks the driver disconnected (a clean close,
// not an error) and schedules a reconnect.
func (b *Base) TransitionDisconnected() {
	b.mu.Lock()
	wasConnected := b.state == driverreg.StateConnected
	b.state = driverreg.StateDisconnected
	b.mu.Unlock()

	if wasConnected {
		select {
		case b.disconnectedCh <- struct{}{}:
		default:
		}
	}
	b.scheduleReconnect()
}

// TransitionError marks the driver errored and schedules a reconnect.
func (b *Base) TransitionError(err error) {
	b.mu.Lock()
	b.state = driverreg.StateError
	b.lastErr = err.Error()
	b.lastErrAt = b.clock.Now()
	b.mu.Unlock()

	select {
	case b.errCh <- err:
	default:
	}
	b.log.Warnf("transport error: %v", err)
	b.scheduleReconnect()
}

func (b *Base) scheduleReconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.state = driverreg.StateReconnecting
	b.reconnectCount++
	delay := b.backoff.Next()
	if b.reconnectTimer != nil {
		b.reconnectTimer.Stop()
	}
	b.reconnectTimer = b.clock.AfterFunc(delay, func() {
		_ = b.Connect()
	})
}

// Disconnect stops reconnect attempts and heartbeat tracking. The
// concrete driver is responsible for closing its own transport before
// or after calling this.
func (b *Base) Disconnect() {
	b.mu.Lock()
	b.stopped = true
	b.state = driverreg.StateDisconnected
	if b.reconnectTimer != nil {
		b.reconnectTimer.Stop()
		b.reconnectTimer = nil
	}
	if b.heartbeatTimer != nil {
		b.heartbeatTimer.Stop()
		b.heartbeatTimer = nil
	}
	b.mu.Unlock()
}

// SetBackoff overrides the reconnect backoff bounds (spec.md §6 config
// ingest "reconnect" device extension). Zero values keep the default.
func (b *Base) SetBackoff(initial, max time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backoff = reconnect.NewBackoff(initial, max)
}

// SetHeartbeat overrides the heartbeat watchdog config (spec.md §6 config
// ingest "heartbeat" device extension; SPEC_FULL.md §4.10 forces this off
// for device types that never send unsolicited data regardless of what
// the caller passes).
func (b *Base) SetHeartbeat(enabled bool, interval time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.HeartbeatEnabled = enabled
	b.HeartbeatInterval = interval
}

// Resume clears the stopped flag so a manually Disconnect()-ed driver
// can be reconnected again via Connect().
func (b *Base) Resume() {
	b.mu.Lock()
	b.stopped = false
	b.mu.Unlock()
}

// NoteInboundData resets the heartbeat deadline; call this from the
// driver's read loop whenever any data arrives, solicited or not.
func (b *Base) NoteInboundData() {
	b.mu.Lock()
	b.lastHeartbeat = b.clock.Now()
	b.mu.Unlock()
	b.armHeartbeatLocked()
}

func (b *Base) armHeartbeatLocked() {
	if !b.HeartbeatEnabled || b.HeartbeatInterval <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	if b.heartbeatTimer != nil {
		b.heartbeatTimer.Stop()
	}
	b.heartbeatTimer = b.clock.AfterFunc(b.HeartbeatInterval, func() {
		b.log.Warnf("heartbeat timeout after %v, forcing reconnect", b.HeartbeatInterval)
		b.TransitionDisconnected()
	})
}

// EmitFeedback delivers a feedback event; drops it (with a log) if the
// channel is full rather than blocking the driver's own goroutine.
func (b *Base) EmitFeedback(address string, args []oscproto.Arg) {
	select {
	case b.feedbackCh <- driverreg.FeedbackEvent{Address: address, Args: args}:
	default:
		b.log.Warnf("feedback channel full, dropping event for %s", address)
	}
}

// EnqueueReplay queues an outbound send while disconnected.
func (b *Base) EnqueueReplay(address string, args []oscproto.Arg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.replay.Push(reconnect.Entry{Address: address, Args: args}) {
		b.log.Debugf("replay buffer full, evicted oldest entry")
	}
}

// NoteEchoSuppressed increments the diagnostic echo-suppression counter.
func (b *Base) NoteEchoSuppressed() {
	b.mu.Lock()
	b.echoSuppressed++
	b.mu.Unlock()
}

func (b *Base) Health() driverreg.HealthSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return driverreg.HealthSnapshot{
		Name:            b.name,
		Prefix:          b.prefix,
		State:           b.state,
		ReconnectCount:  b.reconnectCount,
		LastConnectedAt: b.lastConnected,
		LastError:       b.lastErr,
		LastErrorAt:     b.lastErrAt,
		LastHeartbeatAt: b.lastHeartbeat,
		EchoSuppressed:  b.echoSuppressed,
	}
}
