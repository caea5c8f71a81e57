package rooms

import "context"

type Repository interface {
	// Create stores room and fills its ID; common.ErrAlreadyExists when the
	// name is taken.
	Create(ctx context.Context, room *Room) error
	Get(ctx context.Context, name string) (*Room, error)
	List(ctx context.Context) ([]Room, error)
}
