package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Tyrowin/roomchat/internal/common"
	"github.com/Tyrowin/roomchat/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, room *Room) error {
	query :=
		`INSERT INTO rooms (name, description, creator, password_hash, is_private, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		room.Name, room.Description, room.Creator, room.PasswordHash, room.IsPrivate, room.CreatedAt).Scan(&room.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, name string) (*Room, error) {
	query :=
		`SELECT id, name, description, creator, COALESCE(password_hash, ''), is_private, created_at
		 FROM rooms
		 WHERE name = $1
		 `

	room := &Room{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&room.ID, &room.Name, &room.Description, &room.Creator, &room.PasswordHash, &room.IsPrivate, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return room, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Room, error) {
	query :=
		`SELECT id, name, description, creator, COALESCE(password_hash, ''), is_private, created_at
		 FROM rooms
		 ORDER BY created_at, id
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []Room{}
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.Creator,
			&room.PasswordHash, &room.IsPrivate, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}
