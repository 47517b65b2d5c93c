// Package threshold resolves a message once the shared request counter has
// crossed two thresholds, first one and then the other.
//
// State machine:
//
//	Start --(value >= first)--> Mid(note) --(value >= second)--> Done(result)
//
// Transitions only move forward. Done keeps its result, so asking again after
// resolution returns the same value.
package threshold

import (
	"context"
	"fmt"
	"sync"
)

type Phase int

const (
	Start Phase = iota
	Mid
	Done
)

func (p Phase) String() string {
	switch p {
	case Start:
		return "start"
	case Mid:
		return "mid"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Status is what a single Poll decided.
type Status int

const (
	// Wait means nothing changed; poll again once the counter moves.
	Wait Status = iota
	// Again means the phase advanced; poll again right away with a fresh snapshot.
	Again
	// Ready means the result is available.
	Ready
)

// Source is the counter the waiter observes.
type Source interface {
	Watch() (int, <-chan struct{})
}

type Waiter struct {
	first  int
	second int

	mu     sync.Mutex
	phase  Phase
	note   string
	result string
}

func NewWaiter(first, second int) (*Waiter, error) {
	if first <= 0 || second <= first {
		return nil, fmt.Errorf("thresholds must satisfy 0 < first < second, got %d and %d", first, second)
	}
	return &Waiter{first: first, second: second, phase: Start}, nil
}

// Poll advances the state machine with one counter snapshot.
func (w *Waiter) Poll(snapshot int) (Status, string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.phase {
	case Start:
		if snapshot >= w.first {
			w.phase = Mid
			w.note = fmt.Sprintf("reached %d requests", w.first)
			return Again, ""
		}
		return Wait, ""
	case Mid:
		if snapshot >= w.second {
			w.result = fmt.Sprintf("Reached %d total requests (note from mid-state: %s)", w.second, w.note)
			w.phase = Done
			return Ready, w.result
		}
		return Wait, ""
	default:
		return Ready, w.result
	}
}

// Wait blocks until the source crosses both thresholds or ctx ends. It only
// re-evaluates when the source reports a change.
func (w *Waiter) Wait(ctx context.Context, src Source) (string, error) {
	for {
		value, changed := src.Watch()
		status, result := w.Poll(value)
		switch status {
		case Ready:
			return result, nil
		case Again:
			continue
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (w *Waiter) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Result returns the resolved message and whether the waiter is done.
func (w *Waiter) Result() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result, w.phase == Done
}
