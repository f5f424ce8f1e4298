package qlab

import (
	"net"
	"testing"
	"time"

	"github.com/mousetraptech/productionhub/internal/oscproto"
)

// fakeQLab is a minimal stand-in for a QLab workspace's OSC endpoint: it
// remembers the address of whoever last sent it a datagram and can reply
// straight back to that address, mirroring QLab's own reply-to-sender
// behavior.
type fakeQLab struct {
	conn *net.UDPConn
}

func newFakeQLab(t *testing.T) *fakeQLab {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &fakeQLab{conn: conn}
}

func (f *fakeQLab) addr() string { return f.conn.LocalAddr().String() }

func (f *fakeQLab) recv(t *testing.T) (oscproto.Message, *net.UDPAddr) {
	t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, from, err := f.conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	msg, err := oscproto.Decode(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg, from
}

func (f *fakeQLab) replyTo(t *testing.T, to *net.UDPAddr, originalAddress, jsonBody string) {
	t.Helper()
	data, err := oscproto.Encode(oscproto.New("/reply/"+originalAddress, oscproto.Str(jsonBody)))
	if err != nil {
		t.Fatalf("encode reply: %v", err)
	}
	if _, err := f.conn.WriteToUDP(data, to); err != nil {
		t.Fatalf("write reply: %v", err)
	}
}

func newConnectedTestDriver(t *testing.T) (*Driver, *fakeQLab) {
	t.Helper()
	fake := newFakeQLab(t)
	d := New("qlab", "/qlab", fake.addr(), "")
	if err := d.dial(); err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		d.mu.Lock()
		if d.conn != nil {
			d.conn.Close()
		}
		d.mu.Unlock()
	})
	return d, fake
}

func TestDialSendsConnectThenUpdatesSubscription(t *testing.T) {
	d, fake := newConnectedTestDriver(t)
	defer func() { _ = d }()

	msg, from := fake.recv(t)
	if msg.Address != "/connect" {
		t.Fatalf("want /connect first, got %q", msg.Address)
	}

	msg, _ = fake.recv(t)
	if msg.Address != "/updates" {
		t.Fatalf("want /updates second, got %q", msg.Address)
	}
	if len(msg.Args) != 1 {
		t.Fatalf("want one arg on /updates, got %d", len(msg.Args))
	}
	if v, ok := msg.Args[0].AsInt64(); !ok || v != 1 {
		t.Fatalf("want /updates 1, got %v", msg.Args[0])
	}
	_ = from
}

func TestConnectWithPasscodeIncludesArgument(t *testing.T) {
	fake := newFakeQLab(t)
	d := New("qlab", "/qlab", fake.addr(), "sesame")
	if err := d.dial(); err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { d.conn.Close() }()

	msg, _ := fake.recv(t)
	if msg.Address != "/connect" {
		t.Fatalf("want /connect, got %q", msg.Address)
	}
	if len(msg.Args) != 1 {
		t.Fatalf("want passcode argument, got %d args", len(msg.Args))
	}
	if s, ok := msg.Args[0].AsString(); !ok || s != "sesame" {
		t.Fatalf("want passcode sesame, got %v", msg.Args[0])
	}
}

func TestHandleOSCForwardsUnchanged(t *testing.T) {
	d, fake := newConnectedTestDriver(t)

	// Drain the connect/updates handshake traffic first.
	fake.recv(t)
	fake.recv(t)

	d.HandleOSC("go", []oscproto.Arg{oscproto.Int(3)})
	msg, _ := fake.recv(t)
	if msg.Address != "/go" {
		t.Fatalf("want /go, got %q", msg.Address)
	}
}

func TestHandleInboundPlayheadChangeEmitsFeedbackOnce(t *testing.T) {
	d, fake := newConnectedTestDriver(t)
	fake.recv(t) // /connect
	fake.recv(t) // /updates

	d.handleInbound(oscproto.New("/reply/cue/playhead/text", oscproto.Str(`{"status":"ok","data":"3.2 Houselights"}`)))

	select {
	case ev := <-d.Feedback():
		if ev.Address != "cue/playhead/text" {
			t.Fatalf("want cue/playhead/text, got %q", ev.Address)
		}
	default:
		t.Fatalf("expected a feedback event")
	}

	// Repeating the identical payload must not emit a second event.
	d.handleInbound(oscproto.New("/reply/cue/playhead/text", oscproto.Str(`{"status":"ok","data":"3.2 Houselights"}`)))
	select {
	case ev := <-d.Feedback():
		t.Fatalf("unexpected duplicate feedback event: %+v", ev)
	default:
	}
}

func TestHandleInboundRunningCuesChange(t *testing.T) {
	d, _ := newConnectedTestDriver(t)

	d.handleInbound(oscproto.New("/reply/runningCues", oscproto.Str(`{"status":"ok","data":[{"uniqueID":"1"}]}`)))
	select {
	case ev := <-d.Feedback():
		if ev.Address != "runningCues" {
			t.Fatalf("want runningCues, got %q", ev.Address)
		}
	default:
		t.Fatalf("expected a feedback event")
	}
}

func TestHandleInboundIgnoresNonReplyAddresses(t *testing.T) {
	d, _ := newConnectedTestDriver(t)
	d.handleInbound(oscproto.New("/workspace/updates", oscproto.Str("ignored")))
	select {
	case ev := <-d.Feedback():
		t.Fatalf("unexpected feedback event: %+v", ev)
	default:
	}
}

func TestReadLoopDeliversReplyFeedbackEndToEnd(t *testing.T) {
	d, fake := newConnectedTestDriver(t)
	_, from := fake.recv(t) // /connect, carries the driver's source address
	fake.recv(t)            // /updates

	fake.replyTo(t, from, "cue/playhead/text", `{"status":"ok","data":"1.0 Intro"}`)

	select {
	case ev := <-d.Feedback():
		if ev.Address != "cue/playhead/text" {
			t.Fatalf("want cue/playhead/text, got %q", ev.Address)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for feedback event")
	}
}

func TestHandleFeedbackNeverClaims(t *testing.T) {
	d, _ := newConnectedTestDriver(t)
	if d.HandleFeedback("/anything", nil) {
		t.Fatalf("qlab driver must never claim unprefixed feedback")
	}
}
