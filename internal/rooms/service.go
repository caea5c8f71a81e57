package rooms

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Tyrowin/roomchat/internal/common"
	"golang.org/x/crypto/bcrypt"
)

const maxNameLength = 64

// Service implements room creation and the join capability check. Joining
// only validates the password; live membership is owned by the hub.
type Service struct {
	repo       Repository
	bcryptCost int
	now        func() time.Time
}

func NewService(repo Repository, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, bcryptCost: bcryptCost, now: time.Now}
}

func (s *Service) Create(ctx context.Context, name, description, creator, password string, isPrivate bool) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, fmt.Errorf("room name must be 1-%d characters: %w", maxNameLength, common.ErrInvalidInput)
	}
	if isPrivate && password == "" {
		return nil, fmt.Errorf("private room requires a password: %w", common.ErrInvalidInput)
	}

	room := &Room{
		Name:        name,
		Description: strings.TrimSpace(description),
		Creator:     creator,
		IsPrivate:   isPrivate,
		CreatedAt:   s.now().UTC(),
	}

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash room password: %w", err)
		}
		room.PasswordHash = string(hash)
	}

	if err := s.repo.Create(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Service) Get(ctx context.Context, name string) (*Room, error) {
	return s.repo.Get(ctx, name)
}

func (s *Service) List(ctx context.Context) ([]Room, error) {
	return s.repo.List(ctx)
}

// Join reports whether password grants access to the named room.
func (s *Service) Join(ctx context.Context, name, password string) (*Room, error) {
	room, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if !room.IsPrivate {
		return room, nil
	}

	// a malformed stored hash is treated like a wrong password
	if err := bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrUnauthorized
	}
	return room, nil
}
