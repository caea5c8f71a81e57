// Package storage selects and owns the persistence backend. The choice
// between transient and durable storage is made once, by Open, and every
// consumer receives the same repositories regardless of which one is active.
package storage

import (
	"context"
	"database/sql"

	"github.com/Tyrowin/roomchat/internal/messages"
	"github.com/Tyrowin/roomchat/internal/rooms"
	"github.com/Tyrowin/roomchat/internal/users"
)

type Manager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Messages() messages.Store
	Rooms() rooms.Repository
	Users() users.Repository
	Durable() bool
	Close() error
}

// Open returns the durable backend when dsn is set and the transient one
// otherwise.
func Open(ctx context.Context, dsn string) (Manager, error) {
	if dsn == "" {
		return NewInMemoryManager(), nil
	}
	m, err := NewPostgresManager(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return m, nil
}
