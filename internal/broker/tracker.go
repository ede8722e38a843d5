package broker

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// AckSummary counts broker acknowledgments for QoS 1 and 2 publishes.
type AckSummary struct {
	Acknowledged   int `json:"acknowledged"`
	Unacknowledged int `json:"unacknowledged"`
}

// Total returns the number of tracked publishes.
func (s AckSummary) Total() int { return s.Acknowledged + s.Unacknowledged }

// Tracker holds the set of publishes still waiting on a broker acknowledgment.
// A token that completes with an error counts as unacknowledged.
type Tracker struct {
	mu      sync.Mutex
	pending map[uint64]struct{}
	acked   int
	failed  int
	wg      sync.WaitGroup
}

func NewTracker() *Tracker {
	return &Tracker{pending: make(map[uint64]struct{})}
}

// Track registers tok under id and resolves it in the background once paho
// completes the token.
func (t *Tracker) Track(id uint64, tok mqtt.Token) {
	t.mu.Lock()
	t.pending[id] = struct{}{}
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		<-tok.Done()
		t.resolve(id, tok.Error())
	}()
}

func (t *Tracker) resolve(id uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[id]; !ok {
		return
	}
	delete(t.pending, id)
	if err != nil {
		t.failed++
		return
	}
	t.acked++
}

// Pending returns the number of unresolved publishes.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Summary returns the current counts. Unresolved publishes are reported as
// unacknowledged.
func (t *Tracker) Summary() AckSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return AckSummary{
		Acknowledged:   t.acked,
		Unacknowledged: t.failed + len(t.pending),
	}
}

// Wait blocks until every tracked publish resolves, the timeout elapses or
// ctx is cancelled, then returns the summary.
func (t *Tracker) Wait(ctx context.Context, timeout time.Duration) AckSummary {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
	return t.Summary()
}
