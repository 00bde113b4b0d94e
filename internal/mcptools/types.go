package mcptools

// --- MCP tool types for serve-mcp ---
// These tools let an MCP client drive research sessions: start one, answer
// the clarifying question, and read back status and reports.

// MessageInput is one conversation turn supplied by the client.
type MessageInput struct {
	Role    string `json:"role" jsonschema:"user, assistant or system"`
	Content string `json:"content" jsonschema:"message text"`
}

// StartResearchInput is the input for the start_research MCP tool.
type StartResearchInput struct {
	SessionID string         `json:"sessionId,omitempty" jsonschema:"session ID to use (default: generated)"`
	Query     string         `json:"query,omitempty" jsonschema:"research request, sent as a single user message"`
	Messages  []MessageInput `json:"messages,omitempty" jsonschema:"full conversation, used instead of query"`
}

// ReplyInput is the input for the reply_to_clarification MCP tool.
type ReplyInput struct {
	SessionID string `json:"sessionId" jsonschema:"session waiting for input"`
	Reply     string `json:"reply" jsonschema:"answer to the clarifying question"`
}

// ResearchOutcome is the result of start_research and reply_to_clarification.
type ResearchOutcome struct {
	SessionID    string `json:"sessionId"`
	Phase        string `json:"phase"` // awaiting_input, completed or failed
	Question     string `json:"question,omitempty"`
	Verification string `json:"verification,omitempty"`
	FinalReport  string `json:"finalReport,omitempty"`
	Rounds       int    `json:"rounds"`
	Error        string `json:"error,omitempty"`
}

// GetSessionInput is the input for the get_session MCP tool.
type GetSessionInput struct {
	SessionID     string `json:"sessionId" jsonschema:"session ID"`
	IncludeReport bool   `json:"includeReport,omitempty" jsonschema:"include the final report text"`
}

// SessionOutput is the result of the get_session MCP tool.
type SessionOutput struct {
	SessionID       string `json:"sessionId"`
	Phase           string `json:"phase"`
	Question        string `json:"question,omitempty"`
	Error           string `json:"error,omitempty"`
	Rounds          int    `json:"rounds"`
	Topics          int    `json:"topics"`
	Notes           int    `json:"notes"`
	CompletedStages []int  `json:"completedStages"`
	NextStage       int    `json:"nextStage"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
	FinalReport     string `json:"finalReport,omitempty"`
}

// ListSessionsInput is the input for the list_sessions MCP tool.
type ListSessionsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of sessions to return (default: all)"`
}

// ListSessionsOutput is the result of the list_sessions MCP tool.
type ListSessionsOutput struct {
	Sessions []SessionSummary `json:"sessions"`
}

// SessionSummary is a brief overview of one session.
type SessionSummary struct {
	SessionID string `json:"sessionId"`
	Phase     string `json:"phase"`
	NextStage int    `json:"nextStage"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}
