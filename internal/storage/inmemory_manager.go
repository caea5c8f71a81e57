package storage

import (
	"context"
	"database/sql"

	"github.com/Tyrowin/roomchat/internal/messages"
	"github.com/Tyrowin/roomchat/internal/rooms"
	"github.com/Tyrowin/roomchat/internal/users"
)

type InMemoryManager struct {
	messages *messages.MemoryStore
	rooms    *rooms.MemoryRepository
	users    *users.MemoryRepository
}

func NewInMemoryManager() *InMemoryManager {
	return &InMemoryManager{
		messages: messages.NewMemoryStore(),
		rooms:    rooms.NewMemoryRepository(),
		users:    users.NewMemoryRepository(),
	}
}

func (m *InMemoryManager) RunMigrations(context.Context) error { return nil }

func (m *InMemoryManager) Conn() *sql.DB { return nil }

func (m *InMemoryManager) Messages() messages.Store { return m.messages }

func (m *InMemoryManager) Rooms() rooms.Repository { return m.rooms }

func (m *InMemoryManager) Users() users.Repository { return m.users }

func (m *InMemoryManager) Durable() bool { return false }

func (m *InMemoryManager) Close() error { return nil }
