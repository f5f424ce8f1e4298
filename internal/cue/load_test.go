package cue

import (
	"testing"

	"github.com/mousetraptech/productionhub/internal/oscproto"
)

func TestParseDefaultsIDAndName(t *testing.T) {
	doc := []byte(`
cuelist:
  name: Act One
  cues:
    - actions:
        - address: /hub/go
    - id: blackout
      name: Blackout
      actions:
        - address: /chamsys/go
          args: [1]
`)
	list, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Name != "Act One" {
		t.Fatalf("expected list name Act One, got %q", list.Name)
	}
	if len(list.Cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(list.Cues))
	}
	if list.Cues[0].ID != "cue-0" {
		t.Fatalf("expected default id cue-0, got %q", list.Cues[0].ID)
	}
	if list.Cues[0].Name != "Cue 1" {
		t.Fatalf("expected default name 'Cue 1', got %q", list.Cues[0].Name)
	}
	if list.Cues[1].ID != "blackout" {
		t.Fatalf("expected explicit id blackout, got %q", list.Cues[1].ID)
	}
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	doc := []byte(`
cuelist:
  name: Bad
  cues:
    - id: a
      actions:
        - address: /x
    - id: a
      actions:
        - address: /y
`)
	if _, err := Parse(doc); err == nil {
		t.Fatalf("expected error for duplicate cue id")
	}
}

func TestParseRejectsCueWithNoActions(t *testing.T) {
	doc := []byte(`
cuelist:
  name: Bad
  cues:
    - id: a
      actions: []
`)
	if _, err := Parse(doc); err == nil {
		t.Fatalf("expected error for cue with no actions")
	}
}

func TestParseRejectsActionWithoutAddress(t *testing.T) {
	doc := []byte(`
cuelist:
  name: Bad
  cues:
    - id: a
      actions:
        - args: [1]
`)
	if _, err := Parse(doc); err == nil {
		t.Fatalf("expected error for action missing address")
	}
}

func TestParseNormalizesArgs(t *testing.T) {
	doc := []byte(`
cuelist:
  name: Args
  cues:
    - id: a
      actions:
        - address: /fade/go
          args: [1, 0.5, "now", true]
          delayMs: 250
`)
	list, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	act := list.Cues[0].Actions[0]
	if act.DelayMs != 250 {
		t.Fatalf("expected delayMs 250, got %d", act.DelayMs)
	}
	if len(act.Args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(act.Args))
	}
	if act.Args[0].Kind != oscproto.KindInt {
		t.Fatalf("expected first arg to be int kind, got %v", act.Args[0].Kind)
	}
}
