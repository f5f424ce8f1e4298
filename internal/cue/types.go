// Package cue implements the cue sequencer (spec.md §4.9): a
// deterministic state machine over an ordered cue list with pre-wait,
// parallel in-cue delayed actions, post-wait, cancellation, and
// auto-follow.
package cue

import "github.com/mousetraptech/productionhub/internal/oscproto"

// Action is one OSC send within a cue, optionally delayed from the cue's
// start (spec.md §3).
type Action struct {
	Address string
	Args    []oscproto.Arg
	DelayMs int64
}

// Cue is one ordered step in a show script (spec.md §3).
type Cue struct {
	ID         string
	Name       string
	PreWaitMs  int64
	PostWaitMs int64
	AutoFollow bool
	Actions    []Action
}

// List is an ordered sequence of cues with a display name.
type List struct {
	Name string
	Cues []Cue
}

// IndexOf returns the position of the cue with the given id, or -1.
func (l *List) IndexOf(id string) int {
	for i, c := range l.Cues {
		if c.ID == id {
			return i
		}
	}
	return -1
}
