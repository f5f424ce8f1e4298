// Package oscproto defines the typed OSC argument representation shared by
// every component downstream of the listener: the dispatcher, the cue
// sequencer, and every device driver all pass []Arg around instead of
// reaching back into the wire encoding.
package oscproto

import "fmt"

// Kind is the OSC type tag carried by an Arg.
type Kind byte

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "i"
	case KindFloat:
		return "f"
	case KindString:
		return "s"
	case KindBool:
		return "b"
	case KindBlob:
		return "B"
	default:
		return "?"
	}
}

// Arg is a tagged OSC argument. Exactly one of the value fields is
// meaningful, selected by Kind.
type Arg struct {
	Kind Kind
	I    int32
	F    float32
	S    string
	Bool bool
	Blob []byte
}

func Int(v int32) Arg    { return Arg{Kind: KindInt, I: v} }
func Float(v float32) Arg { return Arg{Kind: KindFloat, F: v} }
func Str(v string) Arg   { return Arg{Kind: KindString, S: v} }
func Bool(v bool) Arg    { return Arg{Kind: KindBool, Bool: v} }
func Blob(v []byte) Arg  { return Arg{Kind: KindBlob, Blob: v} }

// AsFloat64 returns the numeric value of the argument as a float64,
// regardless of whether it was tagged Int or Float. Non-numeric args
// return (0, false).
func (a Arg) AsFloat64() (float64, bool) {
	switch a.Kind {
	case KindInt:
		return float64(a.I), true
	case KindFloat:
		return float64(a.F), true
	default:
		return 0, false
	}
}

// AsInt64 is the integer counterpart of AsFloat64; a Float arg is
// truncated towards zero.
func (a Arg) AsInt64() (int64, bool) {
	switch a.Kind {
	case KindInt:
		return int64(a.I), true
	case KindFloat:
		return int64(a.F), true
	default:
		return 0, false
	}
}

// AsString returns the value for a KindString argument; any other kind
// returns ("", false).
func (a Arg) AsString() (string, bool) {
	if a.Kind != KindString {
		return "", false
	}
	return a.S, true
}

func (a Arg) String() string {
	switch a.Kind {
	case KindInt:
		return fmt.Sprintf("%d", a.I)
	case KindFloat:
		return fmt.Sprintf("%g", a.F)
	case KindString:
		return a.S
	case KindBool:
		return fmt.Sprintf("%t", a.Bool)
	case KindBlob:
		return fmt.Sprintf("<%d bytes>", len(a.Blob))
	default:
		return "<invalid>"
	}
}

// Normalize tags an untyped value at the transmit edge: integers become
// Int, non-integer numbers become Float, strings become String, bools
// become Bool. This is how internal call sites (the cue sequencer, config
// defaults, driver builders) hand off bare Go values without caring about
// wire-level type tags.
func Normalize(v any) (Arg, error) {
	switch t := v.(type) {
	case int:
		return Int(int32(t)), nil
	case int32:
		return Int(t), nil
	case int64:
		return Int(int32(t)), nil
	case float32:
		if t == float32(int32(t)) {
			return Int(int32(t)), nil
		}
		return Float(t), nil
	case float64:
		if t == float64(int64(t)) {
			return Int(int32(int64(t))), nil
		}
		return Float(float32(t)), nil
	case string:
		return Str(t), nil
	case bool:
		return Bool(t), nil
	case []byte:
		return Blob(t), nil
	default:
		return Arg{}, fmt.Errorf("oscproto: cannot normalize value of type %T", v)
	}
}

// NormalizeAll normalizes a slice of untyped values, stopping at the first
// value that cannot be tagged.
func NormalizeAll(vs []any) ([]Arg, error) {
	out := make([]Arg, 0, len(vs))
	for _, v := range vs {
		a, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
