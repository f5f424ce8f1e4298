package oscproto

import (
	"fmt"
	"strings"

	"github.com/hypebeast/go-osc/osc"
)

// Message is an OSC address plus its typed argument list.
type Message struct {
	Address string
	Args    []Arg
}

func New(address string, args ...Arg) Message {
	return Message{Address: address, Args: args}
}

// Segments splits the address into its slash-delimited path segments,
// dropping the leading empty element produced by the leading '/'.
func (m Message) Segments() []string {
	trimmed := strings.TrimPrefix(m.Address, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// ToOSC converts a Message into a *osc.Message suitable for
// hypebeast/go-osc's wire encoder/client, preserving each argument's type
// tag.
func ToOSC(m Message) *osc.Message {
	out := osc.NewMessage(m.Address)
	for _, a := range m.Args {
		switch a.Kind {
		case KindInt:
			out.Append(a.I)
		case KindFloat:
			out.Append(a.F)
		case KindString:
			out.Append(a.S)
		case KindBool:
			out.Append(a.Bool)
		case KindBlob:
			out.Append(a.Blob)
		}
	}
	return out
}

// FromOSC converts a decoded *osc.Message back into our tagged Message,
// inferring the Kind from the dynamic Go type go-osc assigned each
// argument during decode (which itself comes straight from the OSC type
// tag on the wire, so no information is lost).
func FromOSC(in *osc.Message) (Message, error) {
	if in == nil {
		return Message{}, fmt.Errorf("oscproto: nil osc.Message")
	}
	out := Message{Address: in.Address, Args: make([]Arg, 0, len(in.Arguments))}
	for _, raw := range in.Arguments {
		a, err := fromOSCArg(raw)
		if err != nil {
			return Message{}, err
		}
		out.Args = append(out.Args, a)
	}
	return out, nil
}

func fromOSCArg(raw any) (Arg, error) {
	switch v := raw.(type) {
	case int32:
		return Int(v), nil
	case int:
		return Int(int32(v)), nil
	case float32:
		return Float(v), nil
	case string:
		return Str(v), nil
	case bool:
		return Bool(v), nil
	case []byte:
		return Blob(v), nil
	default:
		return Arg{}, fmt.Errorf("oscproto: unsupported OSC argument type %T", raw)
	}
}

// Encode renders the message in OSC 1.0 wire format.
func Encode(m Message) ([]byte, error) {
	return ToOSC(m).MarshalBinary()
}

// Decode parses a single OSC 1.0 message datagram. Bundles are rejected;
// the listener treats a bundle the same as a malformed datagram (spec.md
// §4.1 only requires message support).
func Decode(data []byte) (Message, error) {
	pkt, err := osc.ParsePacket(data)
	if err != nil {
		return Message{}, err
	}
	msg, ok := pkt.(*osc.Message)
	if !ok {
		return Message{}, fmt.Errorf("oscproto: bundles are not supported")
	}
	return FromOSC(msg)
}
