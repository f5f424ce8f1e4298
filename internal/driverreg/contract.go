// Package driverreg defines the uniform device driver contract (spec.md
// §4.3) and the registry that resolves an OSC address to the driver that
// owns it by longest matching prefix (spec.md §4.2 step 3).
//
// The registry itself never blocks on a driver: every cross-component
// handoff happens over a channel owned by the driver (spec.md §5).
package driverreg

import (
	"time"

	"github.com/mousetraptech/productionhub/internal/oscproto"
)

// REVISION: driverreg-v1-contract
const revision = "driverreg-v1-contract"

// ConnState is the connection lifecycle state of a driver (spec.md §3).
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateError        ConnState = "error"
)

// Transport identifies the underlying wire protocol a driver speaks.
type Transport string

const (
	TransportTCP       Transport = "tcp"
	TransportUDP       Transport = "udp"
	TransportWebSocket Transport = "websocket"
)

// FeedbackEvent is emitted by a driver with an address relative to its
// own prefix; the feedback relay (spec.md §4.11) re-prefixes it before
// fanning it out to upstream clients.
type FeedbackEvent struct {
	Address string
	Args    []oscproto.Arg
}

// Driver is the uniform contract every device binding implements (spec.md
// §4.3). Connect/Disconnect/HandleOSC/HandleFadeTick must never block the
// caller for long; slow transport I/O happens on the driver's own
// goroutine.
type Driver interface {
	Name() string
	Prefix() string
	Transport() Transport

	Connect() error
	Disconnect()
	IsConnected() bool

	// HandleOSC dispatches an address already stripped of the driver's
	// prefix (and its separating slash, if any) along with its args.
	HandleOSC(address string, args []oscproto.Arg)

	// HandleFadeTick delivers a fade engine tick for a local key this
	// driver registered with the fade engine. Must be non-blocking.
	HandleFadeTick(localKey string, value float64)

	// Feedback returns the channel of events the driver emits for
	// unsolicited or reply traffic from the underlying device. The
	// channel is never closed; readers stop on their own signal.
	Feedback() <-chan FeedbackEvent

	// Connected/Disconnected/Errors surface lifecycle transitions for
	// the health manager to observe (spec.md §4.10).
	Connected() <-chan struct{}
	Disconnected() <-chan struct{}
	Errors() <-chan error

	// Health returns a point-in-time snapshot of connection stats.
	Health() HealthSnapshot

	// HandleFeedback offers a raw, unprefixed address to a driver that
	// knows how to recognize its own device's bare telemetry (spec.md
	// §4.2 step 4). Returns false if this driver doesn't claim it.
	HandleFeedback(rawAddress string, args []oscproto.Arg) bool
}

// HealthSnapshot is the point-in-time connection/stat summary spec.md §3
// and §4.10 require, extended (SPEC_FULL.md §3) with heartbeat and echo
// suppression counters used purely for introspection.
type HealthSnapshot struct {
	Name            string
	Prefix          string
	State           ConnState
	ReconnectCount  int
	LastConnectedAt time.Time
	LastError       string
	LastErrorAt     time.Time
	LastHeartbeatAt time.Time
	EchoSuppressed  uint64
}
