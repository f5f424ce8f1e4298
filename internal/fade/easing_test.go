package fade

import "testing"

func almostEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}

func TestEasingBoundaries(t *testing.T) {
	for _, e := range []Easing{Linear, EaseIn, EaseOut, SCurve} {
		if !almostEqual(apply(e, 0), 0) {
			t.Fatalf("%s(0) = %v, want 0", e, apply(e, 0))
		}
		if !almostEqual(apply(e, 1), 1) {
			t.Fatalf("%s(1) = %v, want 1", e, apply(e, 1))
		}
	}
}

func TestEasingMidpoints(t *testing.T) {
	if !almostEqual(apply(Linear, 0.5), 0.5) {
		t.Fatalf("linear(0.5) should be 0.5")
	}
	if !almostEqual(apply(EaseIn, 0.5), 0.25) {
		t.Fatalf("easein(0.5) should be 0.25")
	}
	if !almostEqual(apply(EaseOut, 0.5), 0.75) {
		t.Fatalf("easeout(0.5) should be 0.75")
	}
	if !almostEqual(apply(SCurve, 0.5), 0.5) {
		t.Fatalf("scurve(0.5) should be 0.5")
	}
}

func TestEasingUnknownFallsBackToLinear(t *testing.T) {
	if !almostEqual(apply(Easing("bogus"), 0.3), 0.3) {
		t.Fatalf("unknown easing should behave like linear")
	}
}
