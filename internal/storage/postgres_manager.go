package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Tyrowin/roomchat/internal/messages"
	"github.com/Tyrowin/roomchat/internal/rooms"
	"github.com/Tyrowin/roomchat/internal/storage/migrations"
	"github.com/Tyrowin/roomchat/internal/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresManager struct {
	db       *sql.DB
	messages *messages.PostgresStore
	rooms    *rooms.PostgresRepository
	users    *users.PostgresRepository
}

func (m *PostgresManager) Conn() *sql.DB { return m.db }

func (m *PostgresManager) Messages() messages.Store { return m.messages }

func (m *PostgresManager) Rooms() rooms.Repository { return m.rooms }

func (m *PostgresManager) Users() users.Repository { return m.users }

func (m *PostgresManager) Durable() bool { return true }

func (m *PostgresManager) Close() error { return m.db.Close() }

func (m *PostgresManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return err
	}

	return nil
}

// NewPostgresManager opens the pgx-backed pool, verifies connectivity and
// applies pending migrations.
func NewPostgresManager(ctx context.Context, dsn string) (*PostgresManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m := newPostgresManager(db)

	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}

func newPostgresManager(db *sql.DB) *PostgresManager {
	return &PostgresManager{
		db:       db,
		messages: messages.NewPostgresStore(db),
		rooms:    rooms.NewPostgresRepository(db),
		users:    users.NewPostgresRepository(db),
	}
}
