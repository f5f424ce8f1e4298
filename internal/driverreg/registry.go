package driverreg

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mousetraptech/productionhub/internal/logging"
)

var log = logging.New("driverreg")

// Registry owns every configured driver and the prefix table used for
// longest-prefix routing. Modeled on the teacher's RWMutex-guarded
// registry map (sessions.Manager): reads (the hot path, one per inbound
// OSC message) take the read lock; add/remove (rare, config-time only)
// take the write lock and rebuild the prefix table.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]Driver
	byLower  map[string]Driver // lowercased prefix -> driver
	sorted   []string          // lowercased prefixes, longest first
	regOrder []string          // driver names in registration order
}

func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]Driver),
		byLower: make(map[string]Driver),
	}
}

// Add registers a driver, rejecting a duplicate (case-insensitive)
// prefix or name (spec.md §3 invariant).
func (r *Registry) Add(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lower := strings.ToLower(d.Prefix())
	if _, exists := r.byLower[lower]; exists {
		return fmt.Errorf("driverreg: prefix %q already registered", d.Prefix())
	}
	if _, exists := r.byName[d.Name()]; exists {
		return fmt.Errorf("driverreg: driver name %q already registered", d.Name())
	}

	r.byName[d.Name()] = d
	r.byLower[lower] = d
	r.regOrder = append(r.regOrder, d.Name())
	r.rebuildLocked()
	log.Infof("registered driver %q prefix=%q transport=%s", d.Name(), d.Prefix(), d.Transport())
	return nil
}

// Remove unregisters a driver by name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byName[name]
	if !ok {
		return
	}
	delete(r.byName, name)
	delete(r.byLower, strings.ToLower(d.Prefix()))
	for i, n := range r.regOrder {
		if n == name {
			r.regOrder = append(r.regOrder[:i], r.regOrder[i+1:]...)
			break
		}
	}
	r.rebuildLocked()
}

func (r *Registry) rebuildLocked() {
	prefixes := make([]string, 0, len(r.byLower))
	for p := range r.byLower {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	r.sorted = prefixes
}

// ByName looks up a driver by its registered name.
func (r *Registry) ByName(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// HandleFadeTick satisfies fade.Sink: the fade engine already splits a
// "<driverName>:<localKey>" fade key before delivering a tick, so routing
// it onward is just a registry lookup (spec.md §4.8).
func (r *Registry) HandleFadeTick(driverName, localKey string, value float64) {
	drv, ok := r.ByName(driverName)
	if !ok {
		log.Warnf("fade tick for unknown driver %q, dropping", driverName)
		return
	}
	drv.HandleFadeTick(localKey, value)
}

// Match performs longest-prefix routing against address (spec.md §4.2
// step 3): the address must either equal the prefix exactly or have '/'
// immediately following it. Matching is case-insensitive on the prefix;
// the returned remainder preserves the original case of address.
//
// Returns the matched driver, the remainder address (without the
// separating slash), and true — or (nil, "", false) if nothing matches.
func (r *Registry) Match(address string) (Driver, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowerAddr := strings.ToLower(address)
	for _, prefix := range r.sorted {
		if !strings.HasPrefix(lowerAddr, prefix) {
			continue
		}
		rest := address[len(prefix):]
		if rest == "" {
			return r.byLower[prefix], "", true
		}
		if strings.HasPrefix(rest, "/") {
			return r.byLower[prefix], rest[1:], true
		}
		// Partial segment match (e.g. "/avantisfoo" against "/avantis")
		// is not a match; keep scanning shorter prefixes.
	}
	return nil, "", false
}

// All returns every registered driver, for connect-all/disconnect-all and
// health snapshots.
func (r *Registry) All() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Driver, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ConnectAll connects every registered driver, logging (not failing) on
// individual errors — a single unreachable device must not block the
// others from connecting.
func (r *Registry) ConnectAll() {
	for _, d := range r.All() {
		if err := d.Connect(); err != nil {
			log.Warnf("driver %q: initial connect failed: %v", d.Name(), err)
		}
	}
}

// DisconnectAll disconnects every registered driver.
func (r *Registry) DisconnectAll() {
	for _, d := range r.All() {
		d.Disconnect()
	}
}

// InRegistrationOrder returns every registered driver in the order they
// were added via Add, used for the unprefixed feedback-parser offer loop
// (spec.md §4.2 step 4: "the first that claims it wins").
func (r *Registry) InRegistrationOrder() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Driver, 0, len(r.regOrder))
	for _, name := range r.regOrder {
		if d, ok := r.byName[name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Snapshot returns the health of every registered driver, sorted by name,
// for /hub/status (SPEC_FULL.md §4.2 expansion).
func (r *Registry) Snapshot() []HealthSnapshot {
	drivers := r.All()
	out := make([]HealthSnapshot, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, d.Health())
	}
	return out
}
