package driverreg

import (
	"testing"

	"github.com/mousetraptech/productionhub/internal/oscproto"
)

type stubDriver struct {
	name, prefix string
}

func (s *stubDriver) Name() string            { return s.name }
func (s *stubDriver) Prefix() string          { return s.prefix }
func (s *stubDriver) Transport() Transport    { return TransportUDP }
func (s *stubDriver) Connect() error          { return nil }
func (s *stubDriver) Disconnect()             {}
func (s *stubDriver) IsConnected() bool       { return true }
func (s *stubDriver) HandleOSC(string, []oscproto.Arg)        {}
func (s *stubDriver) HandleFadeTick(string, float64)          {}
func (s *stubDriver) Feedback() <-chan FeedbackEvent          { return nil }
func (s *stubDriver) Connected() <-chan struct{}               { return nil }
func (s *stubDriver) Disconnected() <-chan struct{}            { return nil }
func (s *stubDriver) Errors() <-chan error                     { return nil }
func (s *stubDriver) Health() HealthSnapshot                   { return HealthSnapshot{Name: s.name} }
func (s *stubDriver) HandleFeedback(string, []oscproto.Arg) bool { return false }

func TestMatchLongestPrefix(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(&stubDriver{name: "a", prefix: "/a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(&stubDriver{name: "ab", prefix: "/a/b"}); err != nil {
		t.Fatal(err)
	}

	d, rest, ok := r.Match("/a/b/c")
	if !ok || d.Name() != "ab" || rest != "c" {
		t.Fatalf("want ab/c, got %v %q %v", d, rest, ok)
	}

	d, rest, ok = r.Match("/a/bc/x")
	if !ok || d.Name() != "a" || rest != "bc/x" {
		t.Fatalf("want a/bc/x (no separator match for /a/b), got %v %q %v", d, rest, ok)
	}
}

func TestMatchCaseInsensitivePrefixPreservesRemainderCase(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(&stubDriver{name: "avantis", prefix: "/avantis"}); err != nil {
		t.Fatal(err)
	}
	d, rest, ok := r.Match("/AVANTIS/Ch/1/Mix/Fader")
	if !ok || d.Name() != "avantis" {
		t.Fatalf("expected case-insensitive prefix match, got %v %v", d, ok)
	}
	if rest != "Ch/1/Mix/Fader" {
		t.Fatalf("remainder must preserve original case, got %q", rest)
	}
}

func TestMatchNoSeparatorIsNotAMatch(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(&stubDriver{name: "avantis", prefix: "/avantis"}); err != nil {
		t.Fatal(err)
	}
	_, _, ok := r.Match("/avantisfoo/bar")
	if ok {
		t.Fatalf("expected no match for /avantisfoo against prefix /avantis")
	}
}

func TestAddRejectsDuplicatePrefixCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(&stubDriver{name: "a", prefix: "/avantis"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(&stubDriver{name: "b", prefix: "/AVANTIS"}); err == nil {
		t.Fatalf("expected duplicate prefix rejection")
	}
}

func TestRegistrationOrderPreservedAfterRemove(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(&stubDriver{name: "one", prefix: "/one"})
	_ = r.Add(&stubDriver{name: "two", prefix: "/two"})
	_ = r.Add(&stubDriver{name: "three", prefix: "/three"})
	r.Remove("two")

	got := r.InRegistrationOrder()
	if len(got) != 2 || got[0].Name() != "one" || got[1].Name() != "three" {
		t.Fatalf("unexpected order: %v", got)
	}
}
