package dispatcher

import (
	"sync"
	"testing"
	"time"

	"github.com/mousetraptech/productionhub/internal/cue"
	"github.com/mousetraptech/productionhub/internal/driverreg"
	"github.com/mousetraptech/productionhub/internal/fade"
	"github.com/mousetraptech/productionhub/internal/oscproto"
)

type stubDriver struct {
	name, prefix string
	mu           sync.Mutex
	handled      []string
	claims       func(addr string) bool
}

func (s *stubDriver) Name() string                     { return s.name }
func (s *stubDriver) Prefix() string                   { return s.prefix }
func (s *stubDriver) Transport() driverreg.Transport    { return driverreg.TransportUDP }
func (s *stubDriver) Connect() error                   { return nil }
func (s *stubDriver) Disconnect()                      {}
func (s *stubDriver) IsConnected() bool                { return true }
func (s *stubDriver) HandleFadeTick(string, float64)   {}
func (s *stubDriver) Feedback() <-chan driverreg.FeedbackEvent { return nil }
func (s *stubDriver) Connected() <-chan struct{}       { return nil }
func (s *stubDriver) Disconnected() <-chan struct{}    { return nil }
func (s *stubDriver) Errors() <-chan error             { return nil }
func (s *stubDriver) Health() driverreg.HealthSnapshot { return driverreg.HealthSnapshot{Name: s.name} }

func (s *stubDriver) HandleOSC(address string, args []oscproto.Arg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled = append(s.handled, address)
}

func (s *stubDriver) HandleFeedback(rawAddress string, args []oscproto.Arg) bool {
	if s.claims != nil && s.claims(rawAddress) {
		s.mu.Lock()
		s.handled = append(s.handled, rawAddress)
		s.mu.Unlock()
		return true
	}
	return false
}

func (s *stubDriver) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.handled))
	copy(out, s.handled)
	return out
}

func TestDispatchRoutesToLongestPrefix(t *testing.T) {
	reg := driverreg.NewRegistry()
	avantis := &stubDriver{name: "console", prefix: "/avantis"}
	if err := reg.Add(avantis); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := New(reg, nil, nil, nil, nil, nil)

	d.Dispatch(oscproto.New("/avantis/ch/1/mix/fader", oscproto.Float(0.5)))
	got := avantis.snapshot()
	if len(got) != 1 || got[0] != "ch/1/mix/fader" {
		t.Fatalf("expected routed remainder ch/1/mix/fader, got %+v", got)
	}
}

func TestDispatchFadeStopWithKey(t *testing.T) {
	sink := &noopSink{}
	eng := fade.NewEngine(sink)
	go eng.Run()
	defer eng.Stop()

	eng.StartFade(fade.StartFadeRequest{Key: "drv:k", EndValue: 1, DurationMs: 1000, Easing: fade.Linear})
	time.Sleep(30 * time.Millisecond)

	reg := driverreg.NewRegistry()
	d := New(reg, eng, nil, nil, nil, nil)
	d.Dispatch(oscproto.New("/fade/stop", oscproto.Str("drv:k")))

	time.Sleep(30 * time.Millisecond)
	v, ok := eng.GetCurrentValue("drv:k")
	if !ok {
		t.Fatalf("expected tracked value to remain after cancel")
	}
	_ = v
}

type noopSink struct{}

func (noopSink) HandleFadeTick(driver, key string, value float64) {}

func TestDispatchHubGoDrivesSequencer(t *testing.T) {
	var fired []string
	seq := cue.NewSequencer(func(a cue.Action) { fired = append(fired, a.Address) }, nil)
	seq.Load(&cue.List{Cues: []cue.Cue{{ID: "c0", Actions: []cue.Action{{Address: "/x"}}}}})

	reg := driverreg.NewRegistry()
	d := New(reg, nil, seq, nil, nil, nil)
	d.Dispatch(oscproto.New("/hub/go"))

	time.Sleep(20 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "/x" {
		t.Fatalf("expected cue action /x fired, got %+v", fired)
	}
}

func TestDispatchUnprefixedFeedbackOfferLoop(t *testing.T) {
	reg := driverreg.NewRegistry()
	first := &stubDriver{name: "a", prefix: "/a", claims: func(string) bool { return false }}
	second := &stubDriver{name: "b", prefix: "/b", claims: func(addr string) bool { return addr == "/pb/1" }}
	if err := reg.Add(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Add(second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := New(reg, nil, nil, nil, nil, nil)
	d.Dispatch(oscproto.New("/pb/1", oscproto.Int(1)))

	if got := second.snapshot(); len(got) != 1 || got[0] != "/pb/1" {
		t.Fatalf("expected second driver to claim /pb/1, got %+v", got)
	}
	if got := first.snapshot(); len(got) != 0 {
		t.Fatalf("expected first driver to not claim anything, got %+v", got)
	}
}

func TestDispatchUnknownAddressDropsWithoutPanic(t *testing.T) {
	reg := driverreg.NewRegistry()
	d := New(reg, nil, nil, nil, nil, nil)
	d.Dispatch(oscproto.New("/nowhere/at/all"))
}

func TestDispatchCueListLoad(t *testing.T) {
	seq := cue.NewSequencer(func(cue.Action) {}, nil)
	var requestedPath string
	loader := func(path string) (*cue.List, error) {
		requestedPath = path
		return &cue.List{Name: "loaded"}, nil
	}

	reg := driverreg.NewRegistry()
	d := New(reg, nil, seq, loader, nil, nil)
	d.Dispatch(oscproto.New("/hub/cuelist/load", oscproto.Str("/shows/act1.yaml")))

	if requestedPath != "/shows/act1.yaml" {
		t.Fatalf("expected loader called with path, got %q", requestedPath)
	}
}

func TestDispatchStatusInvokesHandler(t *testing.T) {
	reg := driverreg.NewRegistry()
	called := false
	onStatus := func(healths []driverreg.HealthSnapshot, playheadID string, running bool) {
		called = true
	}
	d := New(reg, nil, nil, nil, onStatus, nil)
	d.Dispatch(oscproto.New("/hub/status"))
	if !called {
		t.Fatalf("expected status handler to be invoked")
	}
}
