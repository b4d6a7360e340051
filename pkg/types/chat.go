// Package types defines core data structures for Banter
package types

// UserSenderID is the sender identifier reserved for the real user.
const UserSenderID = "user"

// Persona is a scripted synthetic chat participant. Personas are created at
// catalog load time and never mutated; many sessions may share one.
type Persona struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Avatar      string   `json:"avatar,omitempty"`
	Status      string   `json:"status,omitempty"`
	Personality string   `json:"personality"`
	Traits      []string `json:"traits,omitempty"`
}

// Session represents a chat thread: one-to-one with a single persona, or a
// group with an ordered set of participants.
type Session struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	IsGroup bool   `json:"is_group"`

	// Persona is set for one-to-one sessions only.
	Persona *Persona `json:"persona,omitempty"`
	// Participants is set for group sessions only, unique by persona ID.
	Participants []Persona `json:"participants,omitempty"`
	// Topic seeds the autonomous group conversation. Empty for one-to-one.
	Topic string `json:"topic,omitempty"`

	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
	CreatedAt   int64    `json:"created_at"`
}

// Message is a single turn in a session's log. Messages are append-only
// except for Reactions, which the user toggles in place.
type Message struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
	// Timestamp is epoch milliseconds at creation.
	Timestamp int64 `json:"timestamp"`
	IsUser    bool  `json:"is_user"`

	// Reactions maps reactor identity to a single emoji. Only the user is
	// modeled as a reactor today.
	Reactions map[string]string `json:"reactions,omitempty"`
}

// TypingState identifies the persona currently "typing" in a session.
type TypingState struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}
