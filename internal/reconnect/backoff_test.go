package reconnect

import (
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := NewBackoff(1000*time.Millisecond, 30000*time.Millisecond)

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond, // would be 32000, capped
		30000 * time.Millisecond,
	}
	for i, w := range want {
		got := b.Next()
		if got != w {
			t.Fatalf("attempt %d: want %v got %v", i, w, got)
		}
	}
}

func TestBackoffResetReturnsToInitial(t *testing.T) {
	b := NewBackoff(1000*time.Millisecond, 30000*time.Millisecond)
	b.Next()
	b.Next()
	b.Reset()
	if got := b.Next(); got != 1000*time.Millisecond {
		t.Fatalf("want initial after reset, got %v", got)
	}
}

func TestRingBufferEvictsOldestOnOverflow(t *testing.T) {
	rb := NewRingBuffer(3)
	rb.Push(Entry{Address: "/a"})
	rb.Push(Entry{Address: "/b"})
	rb.Push(Entry{Address: "/c"})
	evicted := rb.Push(Entry{Address: "/d"})
	if !evicted {
		t.Fatalf("expected eviction on overflow")
	}
	got := rb.Drain()
	want := []string{"/b", "/c", "/d"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i, w := range want {
		if got[i].Address != w {
			t.Fatalf("entry %d: want %q got %q", i, w, got[i].Address)
		}
	}
}

func TestRingBufferDrainEmptiesBuffer(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Push(Entry{Address: "/a"})
	rb.Drain()
	if rb.Len() != 0 {
		t.Fatalf("expected empty buffer after drain")
	}
}
