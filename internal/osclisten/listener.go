// Package osclisten implements the UDP OSC listener (spec.md §4.1): bind
// a configured endpoint, decode each datagram, track the sender, and hand
// (address, args, sender) off to the Dispatcher. It also owns the
// send-to-clients path used by the feedback relay.
package osclisten

import (
	"errors"
	"fmt"
	"net"

	"github.com/mousetraptech/productionhub/internal/logging"
	"github.com/mousetraptech/productionhub/internal/oscproto"
)

// REVISION: osclisten-v1-udp-loop
const revision = "osclisten-v1-udp-loop"

var log = logging.New("osclisten")

func init() {
	log.Debugf("REVISION: %s loaded", revision)
}

// Handler receives a decoded inbound OSC message and its sender.
type Handler func(msg oscproto.Message, sender *net.UDPAddr)

// Listener binds a UDP endpoint and dispatches decoded OSC messages.
type Listener struct {
	conn      *net.UDPConn
	clients   *UpstreamClients
	replyPort int // 0 means "reply to the client's own source port"
	handler   Handler
}

// NewListener binds listenAddr (host:port) for UDP receive. replyPort, if
// non-zero, overrides the per-client source port used by SendToClients
// (spec.md §4.1).
func NewListener(listenAddr string, replyPort int, clients *UpstreamClients, handler Handler) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("osclisten: resolve %q: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("osclisten: listen %q: %w", listenAddr, err)
	}
	return &Listener{conn: conn, clients: clients, replyPort: replyPort, handler: handler}, nil
}

// Close stops the listener.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Serve runs the receive loop until the socket is closed. Malformed
// datagrams are logged and dropped; the loop never exits because of a
// single bad datagram (spec.md §4.1, §7).
func (l *Listener) Serve() error {
	buf := make([]byte, 65535)
	for {
		n, sender, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warnf("read error: %v", err)
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		msg, err := oscproto.Decode(datagram)
		if err != nil {
			log.Warnf("dropping malformed datagram from %s: %v", sender, err)
			continue
		}

		l.clients.Touch(sender)
		if l.handler != nil {
			l.handler(msg, sender)
		}
	}
}

// SendToClients transmits (address, args) to every non-expired upstream
// client (spec.md §4.1). Per-send errors are logged and otherwise
// ignored — a single unreachable client must not stop delivery to the
// rest, and UDP send failures are inherently non-fatal.
func (l *Listener) SendToClients(msg oscproto.Message) {
	data, err := oscproto.Encode(msg)
	if err != nil {
		log.Warnf("failed to encode outbound message %s: %v", msg.Address, err)
		return
	}

	for _, client := range l.clients.Snapshot() {
		dest := client
		if l.replyPort != 0 {
			dest = &net.UDPAddr{IP: client.IP, Port: l.replyPort}
		}
		if _, err := l.conn.WriteToUDP(data, dest); err != nil {
			log.Warnf("send to %s failed: %v", dest, err)
		}
	}
}
