package core

import "time"

// ActionKind names an external action the core asks the platform layer to
// perform. The core emits each request exactly once per trigger and never
// retries; a wrong retry could double-apply a timeout or role change.
type ActionKind string

const (
	ActionDeleteMessage ActionKind = "delete_message"
	ActionTimeout       ActionKind = "timeout"
	ActionKick          ActionKind = "kick"
	ActionWarn          ActionKind = "warn"
)

// ActionRequest is an already-decided moderation action. Execution, retries
// and permission handling are the platform layer's problem.
type ActionRequest struct {
	ID          string        `json:"id"`
	Kind        ActionKind    `json:"kind"`
	CommunityID string        `json:"community_id"`
	UserID      string        `json:"user_id"`
	ChannelID   string        `json:"channel_id,omitempty"`
	MessageID   string        `json:"message_id,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Reason      string        `json:"reason"`
}

// ActionSink receives action requests from the core. Implemented by the
// platform-integration layer. A failed submission is logged by the caller
// and not retried.
type ActionSink interface {
	Submit(req ActionRequest) error
}
