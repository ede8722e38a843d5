package publisher

import (
	"fmt"
	"sync"
)

// State is the publisher lifecycle stage.
type State string

const (
	StateUnconnected State = "unconnected"
	StateConnecting  State = "connecting"
	StateConnected   State = "connected"
	StateProcessing  State = "processing"
	StateStopped     State = "stopped"
)

var transitions = map[State][]State{
	StateUnconnected: {StateConnecting},
	StateConnecting:  {StateConnected, StateStopped},
	StateConnected:   {StateProcessing, StateStopped},
	StateProcessing:  {StateStopped},
}

// Lifecycle enforces the order unconnected, connecting, connected,
// processing, stopped. A failed connect goes straight to stopped.
type Lifecycle struct {
	mu      sync.Mutex
	state   State
	history []State
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateUnconnected, history: []State{StateUnconnected}}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// History returns every state entered, in order.
func (l *Lifecycle) History() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.history...)
}

// To moves to next, failing if the transition is not allowed.
func (l *Lifecycle) To(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, allowed := range transitions[l.state] {
		if allowed == next {
			l.state = next
			l.history = append(l.history, next)
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s", l.state, next)
}
