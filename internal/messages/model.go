// Package messages persists chat messages and their reactions. Two
// interchangeable backends implement Store: MemoryStore (transient) and
// PostgresStore (durable).
package messages

import (
	"slices"
	"time"
)

// Message is a single chat message as persisted and as delivered to clients.
type Message struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileType  string    `json:"fileType,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	ReplyToID *int64    `json:"replyToId,omitempty"`
	Reactions Reactions `json:"reactions,omitempty"`
}

// Reactions maps an emoji to the usernames that reacted with it, in the
// order they reacted. A username appears at most once per emoji and an
// emoji with no reactors is not present.
type Reactions map[string][]string

// Toggle adds username to emoji's reactor set, or removes it when already
// present. It reports false only when the input cannot be applied.
func (r Reactions) Toggle(emoji, username string) bool {
	if emoji == "" || username == "" {
		return false
	}

	users := r[emoji]
	if i := slices.Index(users, username); i >= 0 {
		users = slices.Delete(users, i, i+1)
		if len(users) == 0 {
			delete(r, emoji)
		} else {
			r[emoji] = users
		}
		return true
	}

	r[emoji] = append(users, username)
	return true
}

// Clone returns a deep copy; nil stays nil.
func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for emoji, users := range r {
		out[emoji] = slices.Clone(users)
	}
	return out
}

func (m Message) clone() Message {
	out := m
	out.Reactions = m.Reactions.Clone()
	if m.ReplyToID != nil {
		id := *m.ReplyToID
		out.ReplyToID = &id
	}
	return out
}
