package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tyrowin/roomchat/internal/common"
	"golang.org/x/crypto/bcrypt"
)

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

func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password required: %w", common.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		// bcrypt refuses passwords longer than 72 bytes
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return fmt.Errorf("password too long: %w", common.ErrInvalidInput)
		}
		return fmt.Errorf("hash password: %w", err)
	}

	return s.repo.Create(ctx, &User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	})
}

// Login checks the credentials. Unknown users and wrong passwords are both
// reported as common.ErrUnauthorized.
func (s *Service) Login(ctx context.Context, username, password string) (*User, error) {
	u, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrUnauthorized
	}
	return u, nil
}

func (s *Service) DarkMode(ctx context.Context, username string) (bool, error) {
	u, err := s.repo.Get(ctx, username)
	if err != nil {
		return false, err
	}
	return u.DarkMode, nil
}

func (s *Service) SetDarkMode(ctx context.Context, username string, enabled bool) error {
	return s.repo.SetDarkMode(ctx, username, enabled)
}
