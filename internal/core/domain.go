package core

import "time"

// Key identifies per-(community, user) moderation state. All stores and
// detectors in the core are keyed by it; state for different keys is never
// serialized behind a shared lock.
type Key struct {
	CommunityID string `json:"community_id"`
	UserID      string `json:"user_id"`
}

func (k Key) String() string {
	return k.CommunityID + ":" + k.UserID
}

// MessageEvent is a decoded message activity record delivered by the
// platform-integration layer. The core never sees protocol frames.
type MessageEvent struct {
	CommunityID  string `json:"community_id"`
	UserID       string `json:"user_id"`
	ChannelID    string `json:"channel_id"`
	MessageID    string `json:"message_id"`
	Content      string `json:"content"`
	MentionCount int    `json:"mention_count"`
	// AuthorExempt marks moderators/administrators; their messages are
	// never evaluated and never enter the detector windows.
	AuthorExempt bool `json:"author_exempt"`
}

func (e MessageEvent) Key() Key {
	return Key{CommunityID: e.CommunityID, UserID: e.UserID}
}

// CommandEvent is a decoded command-invocation record.
type CommandEvent struct {
	CommunityID  string `json:"community_id"`
	UserID       string `json:"user_id"`
	CommandName  string `json:"command_name"`
	AuthorExempt bool   `json:"author_exempt"`
}

func (e CommandEvent) Key() Key {
	return Key{CommunityID: e.CommunityID, UserID: e.UserID}
}

// JoinEvent is a membership-join record.
type JoinEvent struct {
	CommunityID      string    `json:"community_id"`
	UserID           string    `json:"user_id"`
	AccountCreatedAt time.Time `json:"account_created_at"`
	IsBot            bool      `json:"is_bot"`
}

func (e JoinEvent) Key() Key {
	return Key{CommunityID: e.CommunityID, UserID: e.UserID}
}
