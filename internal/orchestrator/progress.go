package orchestrator

import (
	"fmt"
	"sync"
)

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 64

// ProgressReporter fans progress events out to any number of subscribers.
// Emit never blocks: a subscriber whose buffer is full misses the event.
type ProgressReporter struct {
	mu     sync.Mutex
	subs   map[int]chan ProgressEvent
	nextID int
	closed bool
}

// NewProgressReporter creates a ProgressReporter with no subscribers.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{subs: make(map[int]chan ProgressEvent)}
}

// Emit delivers event to every subscriber.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	for _, ch := range pr.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe returns a channel of future events and a function that ends the
// subscription and closes the channel. After Close, the returned channel is
// already closed.
func (pr *ProgressReporter) Subscribe() (<-chan ProgressEvent, func()) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	ch := make(chan ProgressEvent, subscriberBuffer)
	if pr.closed {
		close(ch)
		return ch, func() {}
	}

	id := pr.nextID
	pr.nextID++
	pr.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			pr.mu.Lock()
			defer pr.mu.Unlock()
			if c, ok := pr.subs[id]; ok {
				delete(pr.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscriber channel. Later Emits are dropped.
func (pr *ProgressReporter) Close() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.closed {
		return
	}
	pr.closed = true
	for id, ch := range pr.subs {
		delete(pr.subs, id)
		close(ch)
	}
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", event.Section)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", event.Section)
	case ProgressComplete:
		return fmt.Sprintf("  ✓ %s complete", event.Section)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", event.Section, event.Message)
	case ProgressWaiting:
		return fmt.Sprintf("  ? %s: %s", event.Section, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Section)
	}
}

// FormatStageHeader formats a stage header for display, for example
// "[abc123] Stage 2: supervise".
func FormatStageHeader(sessionID string, stage Stage) string {
	return fmt.Sprintf("[%s] Stage %d: %s", sessionID, int(stage), stage)
}
