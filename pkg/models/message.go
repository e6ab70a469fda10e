// Package models holds data types shared across GenFlow's core engines
// (the agent runtime, the message bus, and the workflow scheduler) so that
// none of those packages need to import one another just to share a struct.
package models

import "time"

// BroadcastRecipient is the sentinel recipient that marks a message for
// fan-out to every registered agent except the sender.
const BroadcastRecipient = "*"

// AgentMessage is an immutable message routed between agents by the bus.
type AgentMessage struct {
	ID          string         `json:"id"`
	Sender      string         `json:"sender"`
	Recipient   string         `json:"recipient"`
	Content     string         `json:"content"`
	MessageType string         `json:"message_type"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// IsBroadcast reports whether the message targets every registered agent.
func (m AgentMessage) IsBroadcast() bool {
	return m.Recipient == BroadcastRecipient
}

// MetadataString returns a string-typed metadata value, or "" if absent or
// not a string.
func (m AgentMessage) MetadataString(key string) string {
	if m.Metadata == nil {
		return ""
	}
	v, ok := m.Metadata[key].(string)
	if !ok {
		return ""
	}
	return v
}

// AgentResult is the outcome of one agent execution (§3 AgentResult).
type AgentResult struct {
	Success  bool           `json:"success"`
	Result   any            `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Failure builds a failed AgentResult carrying err's message.
func Failure(err error, metadata map[string]any) AgentResult {
	return AgentResult{Success: false, Error: err.Error(), Metadata: metadata}
}

// Success builds a successful AgentResult.
func Success(result any, metadata map[string]any) AgentResult {
	return AgentResult{Success: true, Result: result, Metadata: metadata}
}
