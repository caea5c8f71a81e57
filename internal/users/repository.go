package users

import "context"

type Repository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, username string) (*User, error)
	SetDarkMode(ctx context.Context, username string, enabled bool) error
}
