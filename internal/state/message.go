package state

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// Message is one entry in a message log. ID is the merge identity: a message
// whose ID is already present in a log replaces that entry in place.
type Message struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Content   string          `json:"content,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Name      string          `json:"name,omitempty"` // tool or researcher that produced the message
	CreatedAt time.Time       `json:"createdAt"`
}

// NewMessage returns a text message with a fresh random identity.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// UserMessage is shorthand for NewMessage(RoleUser, content).
func UserMessage(content string) Message { return NewMessage(RoleUser, content) }

// AssistantMessage is shorthand for NewMessage(RoleAssistant, content).
func AssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }

// ValidateMessage checks the identity and role of a message. index is the
// message position in its batch and only shapes the error text.
func ValidateMessage(m Message, index int) error {
	if strings.TrimSpace(m.ID) == "" {
		return invalid("message", index, "empty identity")
	}
	if !m.Role.Valid() {
		return invalid("message", index, "unknown role "+string(m.Role))
	}
	if len(m.Data) > 0 && !json.Valid(m.Data) {
		return invalid("message", index, "structured payload is not valid JSON")
	}
	return nil
}

func copyMessage(m Message) Message {
	if m.Data != nil {
		data := make(json.RawMessage, len(m.Data))
		copy(data, m.Data)
		m.Data = data
	}
	return m
}
