package oscproto

import "testing"

func TestNormalizeIntegerBecomesInt(t *testing.T) {
	a, err := Normalize(float64(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != KindInt || a.I != 5 {
		t.Fatalf("want Int(5), got %+v", a)
	}
}

func TestNormalizeNonIntegerBecomesFloat(t *testing.T) {
	a, err := Normalize(0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != KindFloat {
		t.Fatalf("want Float, got %+v", a)
	}
	if a.F != 0.5 {
		t.Fatalf("want 0.5, got %v", a.F)
	}
}

func TestNormalizeString(t *testing.T) {
	a, err := Normalize("hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != KindString || a.S != "hello" {
		t.Fatalf("want Str(hello), got %+v", a)
	}
}

func TestNormalizeUnsupported(t *testing.T) {
	if _, err := Normalize(struct{}{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestAsFloat64(t *testing.T) {
	if v, ok := Int(64).AsFloat64(); !ok || v != 64 {
		t.Fatalf("want 64, got %v %v", v, ok)
	}
	if v, ok := Float(0.5).AsFloat64(); !ok || v != 0.5 {
		t.Fatalf("want 0.5, got %v %v", v, ok)
	}
	if _, ok := Str("x").AsFloat64(); ok {
		t.Fatalf("expected string arg to not be numeric")
	}
}

func TestAsString(t *testing.T) {
	if v, ok := Str("now").AsString(); !ok || v != "now" {
		t.Fatalf("want \"now\", got %v %v", v, ok)
	}
	if _, ok := Int(1).AsString(); ok {
		t.Fatalf("expected int arg to not be a string")
	}
}
