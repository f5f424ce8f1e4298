package osclisten

import (
	"net"
	"sync"
	"time"
)

// ClientTTL is how long an upstream OSC sender is remembered without
// fresh traffic before it's considered stale (spec.md §3).
const ClientTTL = 60 * time.Second

type clientEntry struct {
	addr     *net.UDPAddr
	lastSeen time.Time
}

// UpstreamClients tracks recently-seen OSC senders. Shared by the
// listener (writer, on every inbound datagram) and the feedback relay
// (reader, on every outbound feedback message) — guarded by a mutex per
// spec.md §5, the simplest of the two sanctioned designs for this shared
// resource.
type UpstreamClients struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	now     func() time.Time
}

func NewUpstreamClients() *UpstreamClients {
	return &UpstreamClients{
		clients: make(map[string]*clientEntry),
		now:     time.Now,
	}
}

// Touch records addr as seen just now, refreshing its TTL.
func (c *UpstreamClients) Touch(addr *net.UDPAddr) {
	if addr == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := addr.String()
	if e, ok := c.clients[key]; ok {
		e.lastSeen = c.now()
		return
	}
	c.clients[key] = &clientEntry{addr: addr, lastSeen: c.now()}
}

// Snapshot returns every client seen within ClientTTL, pruning expired
// entries as a side effect.
func (c *UpstreamClients) Snapshot() []*net.UDPAddr {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]*net.UDPAddr, 0, len(c.clients))
	for key, e := range c.clients {
		if now.Sub(e.lastSeen) > ClientTTL {
			delete(c.clients, key)
			continue
		}
		out = append(out, e.addr)
	}
	return out
}

// Len reports the current number of tracked clients, including any not
// yet pruned past their TTL. Exposed for tests and /hub/status.
func (c *UpstreamClients) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
