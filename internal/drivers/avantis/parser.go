package avantis

// Parser is a streaming byte-at-a-time MIDI state machine for the
// console's inbound feedback stream: NRPN assembly across controllers
// 99/98/6, Note-On mutes, Program Change scene recalls (with an optional
// preceding bank-select split for scenes beyond 127), running status,
// and skipping SysEx/realtime bytes the console may interleave.
//
// This is hand-rolled rather than built on a MIDI file/driver library:
// gitlab.com/gomidi/midi/v2's reader helpers target live driver ports
// and standard MIDI files, not an arbitrary accumulate-then-emit byte
// stream off a raw TCP socket, and the state this needs (per-channel
// NRPN MSB/LSB latches, bank-select carry) is specific to this console's
// wire dialect.
type Parser struct {
	runningStatus byte
	inSysex       bool
	pending       []byte
	pendingLen    int

	nrpnMSB map[byte]byte
	nrpnLSB map[byte]byte
	haveMSB map[byte]bool
	haveLSB map[byte]bool

	bankSelect map[byte]byte
	haveBank   map[byte]bool
}

func NewParser() *Parser {
	return &Parser{
		nrpnMSB:    make(map[byte]byte),
		nrpnLSB:    make(map[byte]byte),
		haveMSB:    make(map[byte]bool),
		haveLSB:    make(map[byte]bool),
		bankSelect: make(map[byte]byte),
		haveBank:   make(map[byte]bool),
	}
}

// InboundKind identifies what an InboundEvent reports.
type InboundKind int

const (
	InboundFader InboundKind = iota
	InboundPan
	InboundMute
	InboundScene
)

// InboundEvent is a fully decoded console status change, ready for the
// driver to translate into a feedback FeedbackEvent.
type InboundEvent struct {
	Kind     InboundKind
	Channel  byte
	StripHex byte
	Value    float64 // 0..1 (InboundFader) or -1..1 (InboundPan)
	Muted    bool
	Scene    int
}

func channelLen(status byte) int {
	switch status & 0xF0 {
	case 0x80, 0x90, 0xA0, 0xB0, 0xE0:
		return 2
	case 0xC0, 0xD0:
		return 1
	default:
		return 0
	}
}

// Feed processes one inbound byte, returning a decoded event if this byte
// completed one. Call it for every byte read off the transport in order.
func (p *Parser) Feed(b byte) (InboundEvent, bool) {
	switch {
	case p.inSysex:
		if b == 0xF7 {
			p.inSysex = false
		}
		return InboundEvent{}, false
	case b == 0xF0:
		p.inSysex = true
		return InboundEvent{}, false
	case b >= 0xF8:
		// realtime byte (clock/active-sense/etc): transparent, no state change
		return InboundEvent{}, false
	case b >= 0xF1 && b <= 0xF6:
		// system common: no payload this console emits, drop
		p.runningStatus = 0
		return InboundEvent{}, false
	case b&0x80 != 0:
		p.runningStatus = b
		p.pending = p.pending[:0]
		p.pendingLen = channelLen(b)
		return InboundEvent{}, false
	default:
		if p.runningStatus == 0 || p.pendingLen == 0 {
			return InboundEvent{}, false
		}
		p.pending = append(p.pending, b)
		if len(p.pending) < p.pendingLen {
			return InboundEvent{}, false
		}
		ev, ok := p.complete(p.runningStatus, p.pending)
		p.pending = p.pending[:0]
		return ev, ok
	}
}

func (p *Parser) complete(status byte, data []byte) (InboundEvent, bool) {
	channel := status & 0x0F
	switch status & 0xF0 {
	case 0xB0:
		return p.completeCC(channel, data[0], data[1])
	case 0xC0:
		return p.completeProgramChange(channel, data[0])
	case 0x90:
		return p.completeNoteOn(channel, data[0], data[1])
	default:
		return InboundEvent{}, false
	}
}

func (p *Parser) completeCC(channel, controller, value byte) (InboundEvent, bool) {
	switch controller {
	case 99:
		p.nrpnMSB[channel] = value
		p.haveMSB[channel] = true
		p.haveLSB[channel] = false
	case 98:
		p.nrpnLSB[channel] = value
		p.haveLSB[channel] = true
	case 6:
		if !p.haveMSB[channel] || !p.haveLSB[channel] {
			return InboundEvent{}, false
		}
		stripHex := p.nrpnMSB[channel]
		switch p.nrpnLSB[channel] {
		case nrpnParamFader:
			return InboundEvent{Kind: InboundFader, Channel: channel, StripHex: stripHex, Value: float64(value) / 127}, true
		case nrpnParamPan:
			return InboundEvent{Kind: InboundPan, Channel: channel, StripHex: stripHex, Value: (float64(value) - 64) / 63}, true
		}
	case 0:
		p.bankSelect[channel] = value
		p.haveBank[channel] = true
	}
	return InboundEvent{}, false
}

func (p *Parser) completeProgramChange(channel, program byte) (InboundEvent, bool) {
	scene := int(program)
	if p.haveBank[channel] {
		scene += int(p.bankSelect[channel]) * 128
		p.haveBank[channel] = false
	}
	return InboundEvent{Kind: InboundScene, Channel: channel, Scene: scene}, true
}

func (p *Parser) completeNoteOn(channel, stripHex, velocity byte) (InboundEvent, bool) {
	if velocity == 0 {
		// the console's own release byte from a momentary mute press; the
		// state transition already fired on the preceding Note-On.
		return InboundEvent{}, false
	}
	return InboundEvent{Kind: InboundMute, Channel: channel, StripHex: stripHex, Muted: velocity >= 0x40}, true
}
