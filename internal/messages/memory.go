package messages

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Tyrowin/roomchat/internal/common"
)

// MemoryStore keeps messages in an append-only slice ordered by id. All
// state, reactions included, is guarded by a single RWMutex.
type MemoryStore struct {
	mu     sync.RWMutex
	msgs   []Message
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Save(_ context.Context, msg *Message) (int64, error) {
	if msg == nil || msg.Room == "" {
		return 0, fmt.Errorf("save message: %w", common.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.nextID
	s.nextID++
	s.msgs = append(s.msgs, msg.clone())
	return msg.ID, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, room string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// walk backwards so we stop as soon as limit messages are found
	rev := make([]Message, 0, min(limit, len(s.msgs)))
	for i := len(s.msgs) - 1; i >= 0 && len(rev) < limit; i-- {
		if s.msgs[i].Room == room {
			rev = append(rev, s.msgs[i].clone())
		}
	}

	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev, nil
}

func (s *MemoryStore) EditText(_ context.Context, id int64, text string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.indexOf(id)
	if !ok {
		return Message{}, common.ErrNotFound
	}
	s.msgs[i].Text = text
	return s.msgs[i].clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.indexOf(id)
	if !ok {
		return Message{}, common.ErrNotFound
	}
	removed := s.msgs[i]
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
	return removed, nil
}

func (s *MemoryStore) ToggleReaction(_ context.Context, id int64, emoji, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.indexOf(id)
	if !ok {
		return false, common.ErrNotFound
	}
	if s.msgs[i].Reactions == nil {
		s.msgs[i].Reactions = Reactions{}
	}
	return s.msgs[i].Reactions.Toggle(emoji, username), nil
}

// indexOf relies on ids being ascending: Save only appends and Delete never
// reorders. Callers must hold s.mu.
func (s *MemoryStore) indexOf(id int64) (int, bool) {
	return slices.BinarySearchFunc(s.msgs, id, func(m Message, id int64) int {
		return cmp.Compare(m.ID, id)
	})
}
