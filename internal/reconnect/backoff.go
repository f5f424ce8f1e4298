package reconnect

import "time"

// DefaultInitialBackoff and DefaultMaxBackoff are spec.md §4.10's default
// reconnect backoff bounds.
const (
	DefaultInitialBackoff = 1000 * time.Millisecond
	DefaultMaxBackoff     = 30000 * time.Millisecond
)

// Backoff computes exponential reconnect delays: each failed attempt
// doubles the previous delay, capped at Max. The first call after
// Reset returns Initial.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	current time.Duration
}

func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	if max <= 0 {
		max = DefaultMaxBackoff
	}
	return &Backoff{Initial: initial, Max: max}
}

// Next returns the delay to wait before the next reconnect attempt and
// advances internal state for the attempt after that.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
		return b.current
	}
	next := b.current * 2
	if next > b.Max {
		next = b.Max
	}
	b.current = next
	return b.current
}

// Reset clears accumulated backoff, so the next Next() call returns
// Initial again. Called on a successful connect.
func (b *Backoff) Reset() {
	b.current = 0
}
