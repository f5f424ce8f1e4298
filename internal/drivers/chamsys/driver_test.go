package chamsys

import (
	"net"
	"testing"
	"time"

	"github.com/mousetraptech/productionhub/internal/oscproto"
)

func newTestDriver(t *testing.T) (*Driver, *net.UDPConn) {
	t.Helper()
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	d := New("chamsys", "/chamsys", listener.LocalAddr().String())
	if err := d.dial(); err != nil {
		t.Fatalf("dial: %v", err)
	}
	return d, listener
}

func TestHandleOSCForwardsMessageUnchanged(t *testing.T) {
	d, listener := newTestDriver(t)
	d.HandleOSC("pb/1/go", []oscproto.Arg{oscproto.Float(1.0)})

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := oscproto.Decode(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Address != "/pb/1/go" {
		t.Fatalf("want /pb/1/go, got %q", msg.Address)
	}
}

func TestHandleFeedbackRecognizesPlaybackLevel(t *testing.T) {
	d, _ := newTestDriver(t)
	if !d.HandleFeedback("/pb/3", []oscproto.Arg{oscproto.Float(0.8)}) {
		t.Fatalf("expected /pb/3 to be claimed")
	}
	select {
	case ev := <-d.Feedback():
		if ev.Address != "pb/3" {
			t.Fatalf("want pb/3, got %q", ev.Address)
		}
	default:
		t.Fatalf("expected a feedback event")
	}
}

func TestHandleFeedbackRecognizesMaster(t *testing.T) {
	d, _ := newTestDriver(t)
	if !d.HandleFeedback("/master", nil) {
		t.Fatalf("expected /master to be claimed")
	}
}

func TestHandleFeedbackDeclinesUnrelatedAddress(t *testing.T) {
	d, _ := newTestDriver(t)
	if d.HandleFeedback("/scene/current", nil) {
		t.Fatalf("expected unrelated address to be declined")
	}
}
