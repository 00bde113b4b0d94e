package state

import "sync"

// AppendTexts concatenates incoming onto existing. It never deduplicates or
// reorders: appending the same contribution twice yields it twice.
func AppendTexts(existing, incoming []string) []string {
	out := make([]string, 0, len(existing)+len(incoming))
	out = append(out, existing...)
	return append(out, incoming...)
}

// TextAccumulator is an append-only ordered sequence of text records.
type TextAccumulator struct {
	mu    sync.RWMutex
	items []string
}

// NewTextAccumulator returns an empty accumulator.
func NewTextAccumulator() *TextAccumulator {
	return &TextAccumulator{}
}

// Merge appends texts in order.
func (a *TextAccumulator) Merge(texts ...string) {
	if len(texts) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = AppendTexts(a.items, texts)
}

// Items returns a copy of the accumulated records.
func (a *TextAccumulator) Items() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.items))
	copy(out, a.items)
	return out
}

// Len returns the number of accumulated records.
func (a *TextAccumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}
