package rooms

import (
	"context"
	"sync"

	"github.com/Tyrowin/roomchat/internal/common"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	byName map[string]*Room
	order  []string
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byName: make(map[string]*Room), nextID: 1}
}

func (r *MemoryRepository) Create(_ context.Context, room *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[room.Name]; ok {
		return common.ErrAlreadyExists
	}

	room.ID = r.nextID
	r.nextID++
	stored := *room
	r.byName[room.Name] = &stored
	r.order = append(r.order, room.Name)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, name string) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.byName[name]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *room
	return &out, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Room, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.byName[name])
	}
	return out, nil
}
