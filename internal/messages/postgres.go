package messages

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tyrowin/roomchat/internal/common"
	"github.com/Tyrowin/roomchat/internal/dbx"
)

const messageColumns = `id, username, COALESCE(text, ''), timestamp, room,
		 COALESCE(file_url, ''), COALESCE(file_type, ''), COALESCE(file_name, ''),
		 reply_to_id, reactions`

// PostgresStore persists messages in the messages table. Every operation is a
// single parameterized statement except ToggleReaction, which needs a
// read-modify-write of the reactions column inside one transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, msg *Message) (int64, error) {
	if msg == nil || msg.Room == "" {
		return 0, fmt.Errorf("save message: %w", common.ErrInvalidInput)
	}

	reactions, err := encodeReactions(msg.Reactions)
	if err != nil {
		return 0, err
	}

	query :=
		`INSERT INTO messages (username, text, timestamp, room, file_url, file_type, file_name, reply_to_id, reactions)
		 VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		 RETURNING id
		 `

	err = s.db.QueryRowContext(ctx, query,
		msg.Username, msg.Text, msg.Timestamp, msg.Room,
		msg.FileURL, msg.FileType, msg.FileName, msg.ReplyToID, reactions).Scan(&msg.ID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return msg.ID, nil
}

// ListRecent fetches the newest rows first and reverses them. Rows sharing a
// timestamp are ordered by id.
func (s *PostgresStore) ListRecent(ctx context.Context, room string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}

	query :=
		`SELECT ` + messageColumns + `
		 FROM messages
		 WHERE room = $1
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $2
		 `

	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	rev := make([]Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		rev = append(rev, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev, nil
}

func (s *PostgresStore) EditText(ctx context.Context, id int64, text string) (Message, error) {
	query :=
		`UPDATE messages SET text = NULLIF($1, '')
		 WHERE id = $2
		 RETURNING ` + messageColumns

	return scanOne(s.db.QueryRowContext(ctx, query, text, id))
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) (Message, error) {
	query :=
		`DELETE FROM messages
		 WHERE id = $1
		 RETURNING ` + messageColumns

	return scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) ToggleReaction(ctx context.Context, id int64, emoji, username string) (bool, error) {
	changed := false

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var raw []byte
		err := tx.QueryRowContext(ctx,
			`SELECT reactions FROM messages WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}

		reactions, err := decodeReactions(raw)
		if err != nil {
			return err
		}
		if reactions == nil {
			reactions = Reactions{}
		}
		if !reactions.Toggle(emoji, username) {
			return nil
		}

		encoded, err := encodeReactions(reactions)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE messages SET reactions = $1 WHERE id = $2`, encoded, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return changed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (Message, error) {
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, common.ErrNotFound
		}
		return Message{}, err
	}
	return m, nil
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		m       Message
		replyTo sql.NullInt64
		raw     []byte
	)

	err := row.Scan(&m.ID, &m.Username, &m.Text, &m.Timestamp, &m.Room,
		&m.FileURL, &m.FileType, &m.FileName, &replyTo, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, err
		}
		return Message{}, fmt.Errorf("db error: %w", err)
	}

	if replyTo.Valid {
		id := replyTo.Int64
		m.ReplyToID = &id
	}
	if m.Reactions, err = decodeReactions(raw); err != nil {
		return Message{}, err
	}
	return m, nil
}

func encodeReactions(r Reactions) (string, error) {
	if r == nil {
		return "{}", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode reactions: %w", err)
	}
	return string(b), nil
}

// decodeReactions returns nil for an empty ledger so that the field is
// omitted on the wire.
func decodeReactions(raw []byte) (Reactions, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var r Reactions
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode reactions: %w", err)
	}
	if len(r) == 0 {
		return nil, nil
	}
	return r, nil
}
