package state

import "sync"

// MergeMessages applies the identity-dedup merge rule. Each incoming message
// whose ID already appears in existing replaces that entry at its original
// position; any other message is appended. Incoming messages are processed in
// order, so a repeated ID inside incoming also updates in place.
//
// The batch is validated before anything is applied: if any message is
// malformed, MergeMessages returns existing unchanged together with a
// *ValidationError.
func MergeMessages(existing, incoming []Message) ([]Message, error) {
	for i, m := range incoming {
		if err := ValidateMessage(m, i); err != nil {
			return existing, err
		}
	}
	if len(incoming) == 0 {
		return existing, nil
	}

	out := make([]Message, len(existing), len(existing)+len(incoming))
	copy(out, existing)

	index := make(map[string]int, len(out)+len(incoming))
	for i, m := range out {
		index[m.ID] = i
	}
	for _, m := range incoming {
		m = copyMessage(m)
		if pos, ok := index[m.ID]; ok {
			if m.CreatedAt.IsZero() {
				m.CreatedAt = out[pos].CreatedAt
			}
			out[pos] = m
			continue
		}
		index[m.ID] = len(out)
		out = append(out, m)
	}
	return out, nil
}

// MessageLog is an ordered, identity-deduplicated message sequence. Merges
// are serialised by the log's own lock.
type MessageLog struct {
	mu   sync.RWMutex
	msgs []Message
}

// NewMessageLog returns an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

// Merge applies MergeMessages to the log. On error the log is unchanged.
func (l *MessageLog) Merge(msgs ...Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged, err := MergeMessages(l.msgs, msgs)
	if err != nil {
		return err
	}
	l.msgs = merged
	return nil
}

// Messages returns a copy of the log in order.
func (l *MessageLog) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.msgs))
	for i, m := range l.msgs {
		out[i] = copyMessage(m)
	}
	return out
}

// Len returns the number of messages in the log.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// Last returns the most recently appended message.
func (l *MessageLog) Last() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.msgs) == 0 {
		return Message{}, false
	}
	return copyMessage(l.msgs[len(l.msgs)-1]), true
}

// Get returns the message with the given identity.
func (l *MessageLog) Get(id string) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, m := range l.msgs {
		if m.ID == id {
			return copyMessage(m), true
		}
	}
	return Message{}, false
}
