package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

// MinPasswordLen is the shortest password CreateUser accepts.
const MinPasswordLen = 8

// AuthService verifies login credentials. Sessions are out of its scope:
// a successful login only yields the person id used as X-User-ID.
type AuthService struct {
	DB *gorm.DB

	// Cost is the bcrypt cost for new hashes; 0 means bcrypt.DefaultCost.
	Cost int
}

// Login returns the person id bound to username when password matches.
// Unknown users and wrong passwords both yield ErrUnauthenticated.
func (s *AuthService) Login(ctx context.Context, username, password string) (uint, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, ErrUnauthenticated
	}
	u, err := repo.GetUser(ctx, s.DB, username)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, ErrUnauthenticated
	}
	if err != nil {
		return 0, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return 0, ErrUnauthenticated
	}
	return u.PersonID, nil
}

// CreateUser stores a bcrypt-hashed credential for an existing person.
func (s *AuthService) CreateUser(ctx context.Context, username, password string, personID uint) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", ErrValidation)
	}
	if len(password) < MinPasswordLen {
		return nil, fmt.Errorf("password shorter than %d: %w", MinPasswordLen, ErrValidation)
	}
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{Username: username, PasswordHash: string(hash), PersonID: personID}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetPerson(ctx, tx, personID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("person %d: %w", personID, ErrValidation)
			}
			return err
		}
		switch _, err := repo.GetUser(ctx, tx, username); {
		case err == nil:
			return fmt.Errorf("user %q exists: %w", username, ErrConflict)
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}
		return repo.CreateUser(ctx, tx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
