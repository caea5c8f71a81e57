package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Tyrowin/roomchat/internal/common"
	"github.com/Tyrowin/roomchat/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *User) error {
	query :=
		`INSERT INTO users (username, password_hash, dark_mode, created_at)
		 VALUES ($1, $2, $3, $4)
		 `

	_, err := r.db.ExecContext(ctx, query, user.Username, user.PasswordHash, user.DarkMode, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, username string) (*User, error) {
	query :=
		`SELECT username, password_hash, dark_mode, created_at FROM users
		 WHERE username = $1
		 `

	u := &User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&u.Username, &u.PasswordHash, &u.DarkMode, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) SetDarkMode(ctx context.Context, username string, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET dark_mode = $1 WHERE username = $2`, enabled, username)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
