package avantis

import "testing"

func feedAll(p *Parser, bytes []byte) []InboundEvent {
	var out []InboundEvent
	for _, b := range bytes {
		if ev, ok := p.Feed(b); ok {
			out = append(out, ev)
		}
	}
	return out
}

func TestParserDecodesNRPNFader(t *testing.T) {
	p := NewParser()
	evs := feedAll(p, []byte{0xB0, 0x63, 0x00, 0xB0, 0x62, 0x17, 0xB0, 0x06, 0x40})
	if len(evs) != 1 || evs[0].Kind != InboundFader {
		t.Fatalf("want one InboundFader event, got %+v", evs)
	}
	if evs[0].StripHex != 0x00 || evs[0].Channel != 0 {
		t.Fatalf("unexpected strip/channel: %+v", evs[0])
	}
	if evs[0].Value < 0.49 || evs[0].Value > 0.51 {
		t.Fatalf("want ~0.5, got %v", evs[0].Value)
	}
}

func TestParserUsesRunningStatus(t *testing.T) {
	p := NewParser()
	// Only the first CC carries the 0xB0 status byte; the rest rely on
	// running status, as the console itself transmits.
	evs := feedAll(p, []byte{0xB0, 0x63, 0x00, 0x62, 0x17, 0x06, 0x40})
	if len(evs) != 1 || evs[0].Kind != InboundFader {
		t.Fatalf("want one InboundFader event via running status, got %+v", evs)
	}
}

func TestParserDecodesSceneWithBankSplit(t *testing.T) {
	p := NewParser()
	evs := feedAll(p, []byte{0xB0, 0x00, 0x01, 0xC0, 0x48})
	if len(evs) != 1 || evs[0].Kind != InboundScene || evs[0].Scene != 200 {
		t.Fatalf("want scene 200, got %+v", evs)
	}
}

func TestParserDecodesSceneWithoutBank(t *testing.T) {
	p := NewParser()
	evs := feedAll(p, []byte{0xC0, 0x05})
	if len(evs) != 1 || evs[0].Scene != 5 {
		t.Fatalf("want scene 5, got %+v", evs)
	}
}

func TestParserMuteIgnoresZeroVelocityRelease(t *testing.T) {
	p := NewParser()
	evs := feedAll(p, []byte{0x90, 0x05, 0x7F, 0x90, 0x05, 0x00})
	if len(evs) != 1 || evs[0].Kind != InboundMute || !evs[0].Muted {
		t.Fatalf("want one muted InboundMute event, got %+v", evs)
	}
}

func TestParserMuteBelowThresholdIsUnmuted(t *testing.T) {
	p := NewParser()
	evs := feedAll(p, []byte{0x90, 0x05, 0x10})
	if len(evs) != 1 || evs[0].Muted {
		t.Fatalf("want unmuted event for low velocity, got %+v", evs)
	}
}

func TestParserSkipsSysexThenResumes(t *testing.T) {
	p := NewParser()
	seq := []byte{0xF0, 0x01, 0x02, 0x03, 0xF7}
	seq = append(seq, 0xB0, 0x63, 0x00, 0xB0, 0x62, 0x17, 0xB0, 0x06, 0x40)
	evs := feedAll(p, seq)
	if len(evs) != 1 || evs[0].Kind != InboundFader {
		t.Fatalf("want fader event after sysex skip, got %+v", evs)
	}
}

func TestParserSkipsRealtimeBytesMidMessage(t *testing.T) {
	p := NewParser()
	// An active-sense byte (0xFE) interleaved mid-stream must not disturb
	// the in-progress CC message's running status or pending bytes.
	evs := feedAll(p, []byte{0xB0, 0x63, 0xFE, 0x00, 0xB0, 0x62, 0x17, 0xB0, 0x06, 0x40})
	if len(evs) != 1 || evs[0].Kind != InboundFader {
		t.Fatalf("want fader event unaffected by interleaved realtime byte, got %+v", evs)
	}
}

func TestParserIncompleteNRPNProducesNoEvent(t *testing.T) {
	p := NewParser()
	evs := feedAll(p, []byte{0xB0, 0x06, 0x40}) // data MSB with no preceding 99/98
	if len(evs) != 0 {
		t.Fatalf("want no event without NRPN MSB/LSB latched, got %+v", evs)
	}
}
