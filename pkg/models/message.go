package models

// Role identifies who authored a conversational turn.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// MessageType discriminates normal replies from error replies. A failed
// generation is recorded as an ASSISTANT message of type error, never as a
// missing turn.
type MessageType string

const (
	TypeResult MessageType = "RESULT"
	TypeError  MessageType = "ERROR"
)

// Message is one conversational turn. Messages are append-only: created
// once, immutable thereafter, ordered by creation time within a project.
type Message struct {
	ID      string      `json:"id"`
	Project string      `json:"project"`
	Role    Role        `json:"role"`
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	TS      int64       `json:"ts"`
	// Fragment is the optional generated artifact owned by this message.
	// Only ASSISTANT messages may carry one.
	Fragment *Fragment `json:"fragment,omitempty"`
}
