// Package cue implements the cue sequencer (spec.md §4.9): a
// deterministic state machine over an ordered cue list with pre-wait,
// parallel in-cue delayed actions, post-wait, cancellation, and
// auto-follow.
package cue

import (
	"fmt"
	"sync"
	"time"

	"github.com/mousetraptech/productionhub/internal/logging"
)

// REVISION: cue-v1-cancellable-timers
const revision = "cue-v1-cancellable-timers"

var log = logging.New("cue")

func init() {
	log.Debugf("REVISION: %s loaded", revision)
}

// Sender dispatches one OSC send produced by a fired cue action. It is
// supplied by the caller (spec.md §4.9 routes fired actions back through
// the same dispatch path a directly-received OSC message would take).
type Sender func(action Action)

// EventKind identifies the two notifications the sequencer emits.
type EventKind int

const (
	// EventCueFired is emitted the instant a cue's pre-wait begins.
	EventCueFired EventKind = iota
	// EventCueComplete is emitted once every action and the post-wait for
	// a cue have elapsed.
	EventCueComplete
)

// Event is delivered to an optional observer for UI/status feedback.
type Event struct {
	Kind  EventKind
	CueID string
	Index int
}

// Sequencer is the cue-list playback state machine. The playhead and the
// set of in-flight timers are owned exclusively by the goroutine calling
// its methods; callers are expected to serialize calls (the hub dispatches
// them from the single dispatcher goroutine, spec.md §5).
type Sequencer struct {
	mu sync.Mutex

	list     *List
	playhead int

	send    Sender
	observe func(Event)

	running bool
	timers  []*time.Timer
}

// NewSequencer constructs an empty sequencer. Call Load before Go/GoCue.
func NewSequencer(send Sender, observe func(Event)) *Sequencer {
	return &Sequencer{
		send:     send,
		observe:  observe,
		playhead: -1,
	}
}

// Load atomically replaces the cue list and resets the playhead to just
// before the first cue. Any cue currently in flight is cancelled first
// (spec.md §4.9: "Stop() cancels every scheduled task for the active cue").
func (s *Sequencer) Load(list *List) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAllLocked()
	s.running = false
	s.list = list
	s.playhead = -1
}

// Go fires the next cue after the current playhead position.
func (s *Sequencer) Go() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.list == nil {
		return fmt.Errorf("cue: no list loaded")
	}
	next := s.playhead + 1
	if next >= len(s.list.Cues) {
		return fmt.Errorf("cue: at end of list")
	}
	return s.fireLocked(next)
}

// GoCue jumps directly to the cue with the given id and fires it.
func (s *Sequencer) GoCue(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.list == nil {
		return fmt.Errorf("cue: no list loaded")
	}
	idx := s.list.IndexOf(id)
	if idx < 0 {
		return fmt.Errorf("cue: unknown cue id %q", id)
	}
	return s.fireLocked(idx)
}

// Back decrements the playhead by one, clamped to -1, and fires nothing
// (spec.md §4.9: "Back() — decrement to −1 minimum; fires nothing.").
// Any timers pending for the previously active cue are cancelled.
func (s *Sequencer) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.list == nil {
		return fmt.Errorf("cue: no list loaded")
	}
	s.cancelAllLocked()
	s.running = false
	if s.playhead > -1 {
		s.playhead--
	}
	return nil
}

// Stop cancels every scheduled action/completion timer for the
// currently-running cue, without moving the playhead. Does not cancel
// already-dispatched sends.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAllLocked()
	s.running = false
}

// Shutdown cancels all pending work and drops the loaded list, so Go,
// GoCue and Back report "no list loaded" until the next Load; safe to
// call multiple times.
func (s *Sequencer) Shutdown() {
	s.Stop()
	s.mu.Lock()
	s.list = nil
	s.playhead = -1
	s.mu.Unlock()
}

// cancelAllLocked cancels every pending timer atomically. Must hold s.mu.
func (s *Sequencer) cancelAllLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// fireLocked implements spec.md §4.9's five-step cue-firing algorithm.
// Must hold s.mu.
func (s *Sequencer) fireLocked(idx int) error {
	s.cancelAllLocked()

	c := s.list.Cues[idx]
	s.playhead = idx
	s.running = true

	s.emitLocked(Event{Kind: EventCueFired, CueID: c.ID, Index: idx})

	if c.PreWaitMs <= 0 {
		s.fireActionsLocked(c, idx)
		return nil
	}
	t := time.AfterFunc(time.Duration(c.PreWaitMs)*time.Millisecond, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.fireActionsLocked(c, idx)
	})
	s.timers = append(s.timers, t)
	return nil
}

// fireActionsLocked schedules every in-cue action and the cue's completion
// timer. Must hold s.mu.
func (s *Sequencer) fireActionsLocked(c Cue, idx int) {
	maxDelay := int64(0)
	for _, a := range c.Actions {
		action := a
		if action.DelayMs > maxDelay {
			maxDelay = action.DelayMs
		}
		if action.DelayMs <= 0 {
			s.dispatchLocked(action)
			continue
		}
		t := time.AfterFunc(time.Duration(action.DelayMs)*time.Millisecond, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.dispatchLocked(action)
		})
		s.timers = append(s.timers, t)
	}

	completeAfter := time.Duration(maxDelay+c.PostWaitMs) * time.Millisecond
	t := time.AfterFunc(completeAfter, func() {
		s.completeCue(c, idx)
	})
	s.timers = append(s.timers, t)
}

// dispatchLocked sends one action. Must hold s.mu; releases it is not
// required since Sender implementations are expected to be non-blocking
// (spec.md §5).
func (s *Sequencer) dispatchLocked(a Action) {
	if s.send != nil {
		s.send(a)
	}
}

func (s *Sequencer) completeCue(c Cue, idx int) {
	s.mu.Lock()
	s.running = false
	s.emitLocked(Event{Kind: EventCueComplete, CueID: c.ID, Index: idx})
	autoFollow := c.AutoFollow
	s.mu.Unlock()

	if autoFollow {
		if err := s.Go(); err != nil {
			log.Debugf("auto-follow after cue %q stopped: %v", c.ID, err)
		}
	}
}

// emitLocked notifies the observer, if any. Must hold s.mu; the observer
// itself must not call back into the sequencer synchronously.
func (s *Sequencer) emitLocked(e Event) {
	if s.observe != nil {
		s.observe(e)
	}
}

// Playhead returns the id of the cue at the current playhead, or "" if
// none has fired yet.
func (s *Sequencer) Playhead() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.list == nil || s.playhead < 0 || s.playhead >= len(s.list.Cues) {
		return "", false
	}
	return s.list.Cues[s.playhead].ID, true
}

// Running reports whether a cue is currently mid pre-wait/actions/post-wait.
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
