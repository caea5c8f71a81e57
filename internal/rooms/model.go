// Package rooms is the registry of named rooms: persisted metadata that
// outlives live membership, plus the password capability check for private
// rooms.
package rooms

import "time"

type Room struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Creator      string    `json:"creator"`
	PasswordHash string    `json:"-"`
	IsPrivate    bool      `json:"isPrivate"`
	CreatedAt    time.Time `json:"createdAt"`
}
