// Package users is the credential store consumed by the REST surface:
// registration, login and the dark-mode preference.
package users

import "time"

type User struct {
	Username     string
	PasswordHash string
	DarkMode     bool
	CreatedAt    time.Time
}
