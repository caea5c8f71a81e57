package users

import (
	"context"
	"sync"

	"github.com/Tyrowin/roomchat/internal/common"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]User)}
}

func (r *MemoryRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Username]; ok {
		return common.ErrAlreadyExists
	}
	r.users[user.Username] = *user
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) SetDarkMode(_ context.Context, username string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[username]
	if !ok {
		return common.ErrNotFound
	}
	u.DarkMode = enabled
	r.users[username] = u
	return nil
}
