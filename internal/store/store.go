package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mpetrovs/scribebot/internal/common"
)

// Store is the credential store facade used by the orchestrator and the
// license client. It combines the repository, the email cache and the
// password sealer.
type Store struct {
	repo  Repository
	cache *emailCache
	seal  *Sealer
}

func New(repo Repository, sealer *Sealer) *Store {
	return &Store{repo: repo, cache: newEmailCache(), seal: sealer}
}

// GetEmail reads the cache first and falls back to the repository,
// populating the cache on a hit. Returns common.ErrNotFound for an
// unregistered user.
func (s *Store) GetEmail(ctx context.Context, userID int64) (string, error) {
	if email, ok := s.cache.Get(userID); ok {
		return email, nil
	}

	email, err := s.repo.GetEmail(ctx, userID)
	if err != nil {
		return "", err
	}

	s.cache.Put(userID, email)
	return email, nil
}

// AddUser inserts a new record. A second insert for the same user id
// surfaces as common.ErrAlreadyExists.
func (s *Store) AddUser(ctx context.Context, userID int64, email string) error {
	if err := s.repo.CreateUser(ctx, userID, email); err != nil {
		return err
	}
	s.cache.Put(userID, email)
	return nil
}

// SetEmail updates the email on an existing record. Used when the row
// already exists without one, which the minutes upsert can produce.
func (s *Store) SetEmail(ctx context.Context, userID int64, email string) error {
	if err := s.repo.SetEmail(ctx, userID, email); err != nil {
		return err
	}
	s.cache.Put(userID, email)
	return nil
}

// EnsureUser creates the record if it does not exist yet. A concurrent
// insert losing the race is not an error.
func (s *Store) EnsureUser(ctx context.Context, userID int64, email string) error {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.AddUser(ctx, userID, email); err != nil && !errors.Is(err, common.ErrAlreadyExists) {
		return err
	}
	return nil
}

func (s *Store) GetPassword(ctx context.Context, userID int64) (string, error) {
	sealed, err := s.repo.GetPassword(ctx, userID)
	if err != nil {
		return "", err
	}
	plain, err := s.seal.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("password for user %d: %w", userID, err)
	}
	return plain, nil
}

func (s *Store) SetPassword(ctx context.Context, userID int64, password string) error {
	sealed, err := s.seal.Seal(password)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, userID, sealed); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

func (s *Store) GetToken(ctx context.Context, userID int64) (string, error) {
	return s.repo.GetToken(ctx, userID)
}

func (s *Store) SetToken(ctx context.Context, userID int64, token string) error {
	if err := s.repo.SetToken(ctx, userID, token); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// GetMinutes returns the quota counters, treating a missing record
// as (0, 0).
func (s *Store) GetMinutes(ctx context.Context, userID int64) (int64, int64, error) {
	return s.repo.GetMinutes(ctx, userID)
}

func (s *Store) SetMinutes(ctx context.Context, userID int64, maxMinutes, usedMinutes int64) error {
	return s.repo.SetMinutes(ctx, userID, maxMinutes, usedMinutes)
}
