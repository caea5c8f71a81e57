package messages

import "context"

// Store is the persistence contract for messages. Implementations are chosen
// once at startup; callers never branch on which one is active.
//
// EditText, Delete and ToggleReaction return common.ErrNotFound for an
// unknown id and leave the store untouched in that case.
type Store interface {
	// Save assigns msg a new id, strictly greater than every id this store
	// has handed out before, and persists it.
	Save(ctx context.Context, msg *Message) (int64, error)

	// ListRecent returns at most limit messages of room, oldest first.
	ListRecent(ctx context.Context, room string, limit int) ([]Message, error)

	EditText(ctx context.Context, id int64, text string) (Message, error)

	// Delete removes the message and returns it as it was.
	Delete(ctx context.Context, id int64) (Message, error)

	// ToggleReaction flips username's membership in the reactor set of
	// (id, emoji) and reports whether the ledger changed.
	ToggleReaction(ctx context.Context, id int64, emoji, username string) (bool, error)
}
