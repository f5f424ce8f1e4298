package oscproto

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := New("/avantis/ch/1/mix/fader", Float(0.5), Str("go"), Int(3))

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Address != msg.Address {
		t.Fatalf("address mismatch: got %q want %q", got.Address, msg.Address)
	}
	if len(got.Args) != 3 {
		t.Fatalf("want 3 args, got %d", len(got.Args))
	}
	if got.Args[0].Kind != KindFloat || got.Args[0].F != 0.5 {
		t.Fatalf("arg0 mismatch: %+v", got.Args[0])
	}
	if got.Args[1].Kind != KindString || got.Args[1].S != "go" {
		t.Fatalf("arg1 mismatch: %+v", got.Args[1])
	}
	if got.Args[2].Kind != KindInt || got.Args[2].I != 3 {
		t.Fatalf("arg2 mismatch: %+v", got.Args[2])
	}
}

func TestSegments(t *testing.T) {
	m := New("/avantis/ch/1/mix/fader")
	segs := m.Segments()
	want := []string{"avantis", "ch", "1", "mix", "fader"}
	if len(segs) != len(want) {
		t.Fatalf("want %v, got %v", want, segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("segment %d: want %q got %q", i, want[i], segs[i])
		}
	}
}
